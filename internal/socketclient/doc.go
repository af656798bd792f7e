// Package socketclient provides a client for the bookshelf TCP protocol.
//
// Each request is written as a single message; the reply is read until it
// ends in a newline and no more bytes follow within a short quiet period,
// since replies may span several lines.
//
// Basic Usage
//
//	client := socketclient.NewClient("localhost:7777")
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	reply, err := client.Login(ctx, "alice", "secret")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(reply)
package socketclient
