// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

// Package routeros provides a client for the RouterOS API service
// exposed by MikroTik network devices (port 8728 plaintext, 8729 TLS).
//
// The library implements the word/sentence wire protocol: variable
// length-prefix framing, sentence assembly and parsing, both login
// handshakes (plain credentials and the pre-6.43 MD5 challenge), and
// a connection lifecycle with bounded-retry reconnection.
//
// # Quick Start
//
// Create a client and run a command:
//
//	client, err := routeros.NewClient(
//	    "192.168.88.1",
//	    routeros.Username("admin"),
//	    routeros.Password("secret"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	ctx := context.Background()
//	res, err := client.Run(ctx, routeros.Body{}.
//	    Command("/interface/print").
//	    Proplist(".id", "name", "type"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, row := range res.Rows {
//	    fmt.Println(row["name"])
//	}
//
// # Building Requests
//
// Use the Body builder to assemble request sentences:
//
//	q := routeros.Body{}.
//	    Command("/ip/address/add").
//	    Attr("address", "10.0.0.1/24").
//	    Attr("interface", "ether1")
//
//	res, err := client.Run(ctx, q)
//
// # Replies and Errors
//
// Device-side errors arrive as !trap replies: Run returns them as a
// typed Reply with a nil error so the caller can inspect the trailer,
// and the connection stays usable. Transport and protocol failures
// return a *ClientError and retire the connection; the next Run
// reconnects automatically with the configured attempt budget:
//
//	client, err := routeros.NewClient(
//	    "192.168.88.1",
//	    routeros.Username("admin"),
//	    routeros.Password("secret"),
//	    routeros.Attempts(5),
//	    routeros.Delay(2*time.Second),
//	)
//
// # Concurrency
//
// The protocol is strictly request/reply: a client runs one exchange
// at a time. Concurrent Run calls on one client fail fast with a
// misuse error; callers wanting parallelism own multiple clients.
//
// # References
//
//   - RouterOS API: https://help.mikrotik.com/docs/display/ROS/API
//   - gjson: https://github.com/tidwall/gjson
//   - sjson: https://github.com/tidwall/sjson
package routeros
