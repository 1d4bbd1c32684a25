// Package main contains a small TCP echo server used as a reachability target
// in integration tests. It repeats back to the client every line it receives.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"strings"
)

func main() {
	port := flag.Int("port", 6666, "TCP port to listen on")
	flag.Parse()

	srv, err := net.ListenTCP("tcp4", &net.TCPAddr{Port: *port})
	if err != nil {
		log.Fatalf("setting up listener: %v", err)
	}

	log.Printf("listening on %s", srv.Addr())

	for {
		conn, err := srv.Accept()
		if err != nil {
			log.Fatalf("accepting connection: %v", err)
		}

		go serve(conn)
	}
}

func serve(conn net.Conn) {
	log.Printf("connection from %s", conn.RemoteAddr())

	err := echo(conn)
	switch {
	case errors.Is(err, io.EOF):
		log.Printf("%s closed the connection", conn.RemoteAddr())
	case err != nil:
		log.Printf("%s: %v", conn.RemoteAddr(), err)
	}
}

func echo(conn net.Conn) error {
	lines := bufio.NewReader(conn)
	for {
		line, err := lines.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading from peer: %w", err)
		}

		log.Printf("%s: %s", conn.RemoteAddr(), strings.TrimSpace(line))

		_, err = conn.Write([]byte(line))
		if err != nil {
			return fmt.Errorf("echoing back to peer: %w", err)
		}
	}
}
