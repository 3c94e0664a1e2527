// Command playground is an interactive shell around the render loop. It wires
// a small demo site (router, renderer, fake data source) and lets you issue
// server renders, inspect snapshots, and replay them through client
// hydration, optionally backed by a real redis snapshot cache.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/chzyer/readline"

	isorender "github.com/you/isorender"
	"github.com/you/isorender/internal/faketransport"
	redissnap "github.com/you/isorender/snapcache/redis"
)

func main() {
	var (
		configPath = flag.String("config", "", "optional yaml config file")
		redisAddr  = flag.String("redis", "", "redis address for the snapshot cache (empty disables it)")
		latency    = flag.Duration("latency", 150*time.Millisecond, "simulated data source latency")
	)
	flag.Parse()

	cfg := isorender.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = isorender.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
	}

	transport := newDemoTransport(*latency)

	opts := []isorender.RenderLoopOption{
		isorender.WithLogger(isorender.GlogLogger()),
	}
	if *redisAddr != "" {
		sc, err := redissnap.New(redissnap.Options{Addr: *redisAddr})
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer sc.Close()
		opts = append(opts, isorender.WithSnapshotCache(sc))
	}

	rl, err := isorender.NewRenderLoop(cfg, demoRouter{}, demoRenderer{}, transport, opts...)
	if err != nil {
		log.Fatalf("render loop: %v", err)
	}

	rline, err := readline.New("isorender> ")
	if err != nil {
		log.Fatalf("readline: %v", err)
	}
	defer rline.Close()

	fmt.Println("demo routes: /, /profile, /feed, /old-profile (redirects)")
	fmt.Println("commands: render <path[?query]> | hydrate | show | help | exit")

	var lastWire bytes.Buffer
	for {
		line, err := rline.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return
		}
		cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
		switch cmd {
		case "", "help":
			fmt.Println("render <path[?query]>  server-render a route and keep its snapshot")
			fmt.Println("hydrate                replay the last snapshot through a client")
			fmt.Println("show                   print the last snapshot wire form")
			fmt.Println("exit                   leave")
		case "render":
			if arg == "" {
				fmt.Println("usage: render <path[?query]>")
				continue
			}
			path, query, _ := strings.Cut(arg, "?")
			start := time.Now()
			snap, err := rl.Render(context.Background(), isorender.Request{Path: path, Query: query})
			if err != nil {
				fmt.Printf("render failed: %v\n", err)
				continue
			}
			fmt.Printf("rendered %s in %s\n", snap.Identifier, time.Since(start).Round(time.Millisecond))
			if snap.Redirected() {
				fmt.Printf("-> redirect %d %s\n", snap.StatusCode, snap.RedirectTarget)
				continue
			}
			fmt.Printf("markup: %s\n", snap.RenderedMarkup)
			fmt.Printf("variables: %d, incomplete: %v\n", len(snap.InitialVariables), snap.Incomplete)
			lastWire.Reset()
			if err := snap.Encode(&lastWire); err != nil {
				fmt.Printf("encode failed: %v\n", err)
			}
		case "show":
			if lastWire.Len() == 0 {
				fmt.Println("no snapshot yet, render something first")
				continue
			}
			fmt.Println(lastWire.String())
		case "hydrate":
			if lastWire.Len() == 0 {
				fmt.Println("no snapshot yet, render something first")
				continue
			}
			snap, err := isorender.DecodeSnapshot(bytes.NewReader(lastWire.Bytes()))
			if err != nil {
				fmt.Printf("decode failed: %v\n", err)
				continue
			}
			clientTransport := newDemoTransport(*latency)
			client, err := isorender.NewClient(cfg, clientTransport, &demoClientRenderer{})
			if err != nil {
				fmt.Printf("client: %v\n", err)
				continue
			}
			if err := client.Hydrate(context.Background(), snap, isorender.App{Tree: "demo"}); err != nil {
				fmt.Printf("hydrate failed: %v\n", err)
				continue
			}
			fmt.Printf("hydrated %s with %d fetches (want 0)\n", snap.Identifier, clientTransport.TotalCalls())
		case "exit", "quit":
			return
		default:
			fmt.Printf("unknown command %q\n", cmd)
		}
	}
}

func newDemoTransport(latency time.Duration) *faketransport.Transport {
	t := faketransport.New()
	t.SetDelay(latency)
	t.HandleValue("/api/site", map[string]any{"name": "demo site"})
	t.HandleValue("/api/user", map[string]any{"name": "ada", "plan": "pro"})
	t.HandleValue("/api/feed", []any{"first post", "second post", "third post"})
	return t
}

type demoRouter struct{}

func (demoRouter) Match(_ context.Context, req isorender.Request) (*isorender.Match, error) {
	switch req.Path {
	case "/", "/profile", "/feed":
		return &isorender.Match{StatusCode: 200, Data: req.Path}, nil
	case "/old-profile":
		return &isorender.Match{RedirectTarget: "/profile", StatusCode: 301}, nil
	default:
		return &isorender.Match{StatusCode: 404, Data: "404"}, nil
	}
}

type demoRenderer struct{}

func (demoRenderer) Render(rc *isorender.RenderContext) (*isorender.RenderedDoc, error) {
	ctx := context.Background()
	site, _, _ := rc.Use(ctx, "/api/site", nil)
	if site == nil {
		return &isorender.RenderedDoc{Markup: "<p>loading</p>"}, nil
	}
	siteName := site.(map[string]any)["name"]

	switch rc.Match.Data {
	case "/profile":
		user, _, err := rc.Use(ctx, "/api/user", nil)
		if err != nil {
			return &isorender.RenderedDoc{Markup: "<p>profile unavailable</p>"}, nil
		}
		if user == nil {
			return &isorender.RenderedDoc{Markup: "<p>loading</p>"}, nil
		}
		u := user.(map[string]any)
		return &isorender.RenderedDoc{
			Markup:   fmt.Sprintf("<main><h1>%v</h1><p>plan: %v</p></main>", u["name"], u["plan"]),
			Metadata: isorender.DocumentMetadata{Title: fmt.Sprintf("%v | %v", u["name"], siteName)},
		}, nil
	case "/feed":
		feed, _, _ := rc.Use(ctx, "/api/feed", nil)
		if feed == nil {
			return &isorender.RenderedDoc{Markup: "<p>loading</p>"}, nil
		}
		var b strings.Builder
		b.WriteString("<main><ul>")
		for _, item := range feed.([]any) {
			fmt.Fprintf(&b, "<li>%v</li>", item)
		}
		b.WriteString("</ul></main>")
		return &isorender.RenderedDoc{
			Markup:   b.String(),
			Metadata: isorender.DocumentMetadata{Title: fmt.Sprintf("feed | %v", siteName)},
		}, nil
	case "404":
		return &isorender.RenderedDoc{Markup: "<p>not found</p>"}, nil
	default:
		return &isorender.RenderedDoc{
			Markup:   fmt.Sprintf("<main><h1>%v</h1></main>", siteName),
			Metadata: isorender.DocumentMetadata{Title: fmt.Sprintf("%v", siteName)},
		}, nil
	}
}

type demoClientRenderer struct{}

func (demoClientRenderer) Hydrate(rc *isorender.RenderContext, _ isorender.App, markup string) error {
	fmt.Printf("client painted: %s\n", markup)
	return nil
}

func (demoClientRenderer) Mount(rc *isorender.RenderContext, _ isorender.App) error {
	fmt.Println("client mounted fresh")
	return nil
}
