package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/pkg/errors"

	tlsprobe "github.com/mel2oo/tlsprobe"
	"github.com/mel2oo/tlsprobe/classify"
	"github.com/mel2oo/tlsprobe/proxy"
)

var (
	okMark   = color.GreenString("✓")
	failMark = color.RedString("✗")
	heading  = color.New(color.Bold)
)

func mark(ok bool) string {
	if ok {
		return okMark
	}
	return failMark
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(v), "encoding JSON")
}

func writeJSONFile(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	if err := writeJSON(f, v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printResult(w io.Writer, r *tlsprobe.Result) {
	heading.Fprintf(w, "Target: %s:%d\n", r.Host, r.Port)
	sni := r.ServerName
	if sni == "" {
		sni = "(none)"
	}
	fmt.Fprintf(w, "Profile: %s | SNI: %s | ID: %s\n", r.Profile, sni, r.ID)

	connect := ""
	if d, ok := r.ConnectTime.Get(); ok {
		connect = fmt.Sprintf(" in %.3fs", d.Duration().Seconds())
	}
	fmt.Fprintf(w, "%s TCP connected%s\n", mark(r.Connected), connect)

	if p, ok := r.Proxy.Get(); ok {
		fmt.Fprintf(w, "%s Tunnel through %s", mark(r.TunnelEstablished), p.Address)
		if entry, ok := r.Tunnel.Get(); ok && proxy.StatusCode(entry) != 0 {
			fmt.Fprintf(w, " (HTTP %d)", proxy.StatusCode(entry))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "%s Client Hello sent", mark(r.HelloSent))
	if r.HelloSent {
		fmt.Fprintf(w, " (%d bytes)", r.HelloSize)
	}
	fmt.Fprintln(w)
	if fp, ok := r.Fingerprint.Get(); ok {
		fmt.Fprintf(w, "  JA3: %s\n", fp.Hash)
	}

	fmt.Fprintf(w, "%s Response", mark(r.GotResponse()))
	if r.GotResponse() {
		fmt.Fprintf(w, " (%d bytes)", r.ResponseSize)
	}
	fmt.Fprintln(w)
	if resp, ok := r.Response.Get(); ok {
		printResponse(w, resp)
	}
	if rec, ok := r.Record.Get(); ok {
		fmt.Fprintf(w, "  Record: %s\n", rec.Summary())
	}

	if f, ok := r.Error.Get(); ok {
		color.New(color.FgRed).Fprintf(w, "%s %s during %s: %s\n", failMark, f.Kind, f.Phase, f.Reason)
	}

	if len(r.RawResponse) > 0 {
		fmt.Fprintln(w)
		heading.Fprintln(w, "Response hexdump:")
		fmt.Fprint(w, hex.Dump(r.RawResponse))
	}
}

func printResponse(w io.Writer, resp classify.Response) {
	fmt.Fprintf(w, "  Type: %s\n", resp.Kind)
	if !resp.IsTLS() {
		color.New(color.FgYellow).Fprintf(w, "  Likely source: %s\n", resp.Source)
	}
	if info, ok := resp.Firewall.Get(); ok {
		if info.Vendor != "" {
			fmt.Fprintf(w, "  Firewall brand: %s\n", info.Vendor)
		}
		for _, k := range info.HeaderNames() {
			fmt.Fprintf(w, "  %s: %s\n", k, info.Headers[k])
		}
		if len(info.Keywords) > 0 {
			fmt.Fprintf(w, "  Firewall keywords: %s\n", info.KeywordList())
		}
	}
	if resp.Preview != "" && !resp.IsTLS() {
		fmt.Fprintf(w, "  Preview: %s\n", strings.TrimSpace(resp.Preview))
	}
}
