// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package routeros

import (
	"context"
	"io"
	"strings"
)

// Reply tags sent by the device as the first word of a sentence.
const (
	tagRecord = "!re"    // one row of a multi-row result
	tagDone   = "!done"  // end of reply
	tagTrap   = "!trap"  // recoverable error
	tagFatal  = "!fatal" // connection-terminating error
)

// tagWordPrefix marks tag words, which the engine surfaces to callers
// without interpreting them.
const tagWordPrefix = ".tag="

// readSentence reads words from the transport until the empty
// terminator word, returning the words without the terminator.
func readSentence(r io.Reader) ([]string, error) {
	var words []string
	for {
		word, err := readWord(r)
		if err != nil {
			return nil, err
		}
		if word == "" {
			return words, nil
		}
		words = append(words, word)
	}
}

// readReply reads sentences until the reply terminates at !done or
// !fatal and assembles them into a Reply.
//
// A !trap sentence marks the reply as an error but does not terminate
// it; the device still closes the reply with !done. Sentences with an
// unknown first word are skipped for forward compatibility.
func readReply(ctx context.Context, r io.Reader, logger Logger) (Reply, error) {
	reply := Reply{Kind: ReplyDone, Trailer: map[string]string{}}

	for {
		sentence, err := readSentence(r)
		if err != nil {
			return Reply{}, err
		}
		if len(sentence) == 0 {
			// Lone terminator with no words: keep-alive, skip.
			continue
		}

		switch sentence[0] {
		case tagRecord:
			row := map[string]string{}
			parseAttributes(ctx, sentence[1:], row, &reply.Tags, logger)
			reply.Rows = append(reply.Rows, row)
		case tagTrap:
			reply.Kind = ReplyTrap
			parseAttributes(ctx, sentence[1:], reply.Trailer, &reply.Tags, logger)
		case tagDone:
			parseAttributes(ctx, sentence[1:], reply.Trailer, &reply.Tags, logger)
			reply.OK = reply.Kind == ReplyDone
			return reply, nil
		case tagFatal:
			reply.Kind = ReplyFatal
			// !fatal may carry a bare reason word instead of an
			// attribute word; preserve it under "message".
			var attrs, bare []string
			for _, word := range sentence[1:] {
				if strings.HasPrefix(word, "=") || strings.HasPrefix(word, tagWordPrefix) {
					attrs = append(attrs, word)
				} else {
					bare = append(bare, word)
				}
			}
			parseAttributes(ctx, attrs, reply.Trailer, &reply.Tags, logger)
			for _, word := range bare {
				reply.Trailer["message"] = word
			}
			return reply, nil
		default:
			logger.Warn(ctx, "RouterOS reply with unknown tag skipped",
				"tag", sentence[0],
				"words", len(sentence))
		}
	}
}

// parseAttributes extracts =name=value attribute words into dst and
// .tag= words into tags. Values may contain any byte, including '='
// and newlines: only the first '=' after the leading one splits the
// word. Malformed words are logged and discarded; duplicate names
// overwrite earlier values.
func parseAttributes(ctx context.Context, words []string, dst map[string]string, tags *[]string, logger Logger) {
	for _, word := range words {
		if strings.HasPrefix(word, tagWordPrefix) {
			*tags = append(*tags, word[len(tagWordPrefix):])
			continue
		}
		if !strings.HasPrefix(word, "=") {
			logger.Warn(ctx, "RouterOS word is not an attribute, discarded",
				"word", word)
			continue
		}
		name, value, found := strings.Cut(word[1:], "=")
		if !found || name == "" {
			logger.Warn(ctx, "malformed RouterOS attribute word discarded",
				"word", word)
			continue
		}
		dst[name] = value
	}
}
