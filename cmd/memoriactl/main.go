// Package main is a one-shot client for the memoria command socket.
//
// Usage:
//
//	memoriactl list
//	memoriactl '{"cmd":"search","query":"invoice"}'
//	memoriactl -socket /run/user/1000/memoria.sock star id=4 value=true
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/kimhsiao/memoria/internal/config"
	"github.com/kimhsiao/memoria/internal/ipc"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("memoriactl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	socket := fs.String("socket", "", "command socket path (default $XDG_RUNTIME_DIR/memoria.sock)")
	timeout := fs.Duration("timeout", ipc.DefaultClientTimeout, "round-trip timeout")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "usage: memoriactl [-socket path] <cmd> [key=value ...] | '<json request>'")
		return 2
	}

	line, err := buildRequest(fs.Args())
	if err != nil {
		fmt.Fprintf(stderr, "memoriactl: %v\n", err)
		return 2
	}

	path := *socket
	if path == "" {
		path = config.RuntimePath(config.SocketName)
	}
	client := &ipc.Client{SocketPath: path, Timeout: *timeout}
	resp, err := client.RoundTrip(ctx, line)
	if err != nil {
		fmt.Fprintf(stderr, "memoriactl: %v\n", err)
		return 1
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, resp, "", "  ") == nil {
		resp = pretty.Bytes()
	}
	fmt.Fprintln(stdout, string(resp))

	var reply ipc.Reply
	if err := json.Unmarshal(resp, &reply); err != nil || !reply.OK {
		return 1
	}
	return 0
}

// buildRequest accepts either one raw JSON object or a command name
// followed by key=value pairs. Values that parse as JSON (numbers, booleans,
// arrays) are sent typed; anything else is sent as a string.
func buildRequest(args []string) ([]byte, error) {
	if len(args) == 1 && strings.HasPrefix(strings.TrimSpace(args[0]), "{") {
		if !json.Valid([]byte(args[0])) {
			return nil, errors.New("request is not valid JSON")
		}
		return []byte(args[0]), nil
	}

	req := map[string]interface{}{"cmd": args[0]}
	for _, kv := range args[1:] {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("argument %q is not key=value", kv)
		}
		req[key] = parseValue(value)
	}
	return json.Marshal(req)
}

func parseValue(s string) interface{} {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	var v interface{}
	if (strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{")) && json.Unmarshal([]byte(s), &v) == nil {
		return v
	}
	return s
}
