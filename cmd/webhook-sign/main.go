// Command webhook-sign signs a JSON payload the way the CMS signs
// revalidation webhooks, for exercising a local instance.
//
//	webhook-sign -file product.json
//	webhook-sign -file product.json -post http://localhost:8080/api/revalidate
//
// The secret comes from -secret or SANITY_WEBHOOK_SECRET (a .env file is read).
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"renda-edge/internal/signature"
)

func main() {
	_ = godotenv.Load()
	if err := run(os.Args[1:], os.Stdin, os.Stdout, time.Now, http.DefaultClient); err != nil {
		fmt.Fprintln(os.Stderr, "webhook-sign:", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer, now func() time.Time, client *http.Client) error {
	fs := flag.NewFlagSet("webhook-sign", flag.ContinueOnError)
	secret := fs.String("secret", os.Getenv("SANITY_WEBHOOK_SECRET"), "webhook secret")
	header := fs.String("header", "sanity-webhook-signature", "signature header")
	scheme := fs.String("scheme", "sanity", `"sanity" (timestamped) or "plain" (hex HMAC of the body)`)
	file := fs.String("file", "", "payload file (default: stdin)")
	post := fs.String("post", "", "send the signed payload to this URL")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *secret == "" {
		return fmt.Errorf("no secret: pass -secret or set SANITY_WEBHOOK_SECRET")
	}

	var s signature.Scheme
	switch *scheme {
	case "sanity":
		s = signature.SanityScheme(*header, 0)
	case "plain":
		s = signature.PlainScheme(*header)
		s.Encoding = "hex"
	default:
		return fmt.Errorf("unknown scheme %q", *scheme)
	}

	var body []byte
	var err error
	if *file != "" {
		body, err = os.ReadFile(*file)
	} else {
		body, err = io.ReadAll(stdin)
	}
	if err != nil {
		return err
	}
	body = bytes.TrimSpace(body)

	value, err := signature.Sign(s, *secret, body, now())
	if err != nil {
		return err
	}

	if *post == "" {
		fmt.Fprintf(stdout, "%s: %s\n", s.Header, value)
		return nil
	}

	req, err := http.NewRequest(http.MethodPost, *post, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(s.Header, value)
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	fmt.Fprintf(stdout, "%s\n%s\n", resp.Status, bytes.TrimSpace(respBody))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("server answered %s", resp.Status)
	}
	return nil
}
