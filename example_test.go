package pipeline_test

import (
	"context"
	"fmt"
	"log"

	"github.com/rkvclient/pipeline/conn"
	"github.com/rkvclient/pipeline/message"
)

func Example_usage() {
	ctx := context.Background()
	opts := conn.Opts{
		Host:     "127.0.0.1",
		Port:     6379,
		Password: "",
	}

	c, err := conn.Connect(ctx, opts)
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	fut := message.NewChanFuture()
	if err := c.Send("GET", []interface{}{"mykey"}, 0, message.BytesSink{F: fut}); err != nil {
		log.Fatal(err)
	}
	v, err := fut.Wait()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(v)
}

func Example_transaction() {
	ctx := context.Background()
	c, err := conn.Connect(ctx, conn.Opts{Host: "127.0.0.1", Port: 6379})
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	tx, err := c.Begin()
	if err != nil {
		log.Fatal(err)
	}
	if err := tx.Watch("balance"); err != nil {
		log.Fatal(err)
	}
	fut := message.NewChanFuture()
	if err := tx.Queue("DECRBY", []interface{}{"balance", 10}, message.IntSink{F: fut}); err != nil {
		log.Fatal(err)
	}
	if committed, err := tx.Exec(); err != nil {
		log.Fatal(err)
	} else if !committed {
		log.Fatal("transaction aborted: balance key changed")
	}
	v, err := fut.Wait()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(v)
}
