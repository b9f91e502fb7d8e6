// Command ferris-say is a minimal direct-message chat system.
//
// It supports four modes:
//  1. "server" – runs the WebSocket relay with an HTTP API
//  2. "client" – runs an interactive terminal client against a relay
//  3. "mcp" – exposes the chat client over MCP stdio
//  4. "configure" – persists the username and server address
//
// Flags control host/port, debug logging, and optional ngrok tunneling for
// easy external access during development.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/smf8/ferris-say/api"
	"github.com/smf8/ferris-say/client"
	"github.com/smf8/ferris-say/settings"
	"github.com/smf8/ferris-say/transport/mcp"
	"github.com/smf8/ferris-say/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "x-ferris-say"
)

func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	} else {
		log.Println("Loaded environment variables from .env file")
	}

	if err := rootCommand().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

// rootCommand builds the CLI tree.
func rootCommand() *cli.Command {
	return &cli.Command{
		Name:    AppName,
		Usage:   "minimal direct-message chat over a WebSocket relay",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			if c.Bool("debug") {
				log.SetFlags(log.LstdFlags | log.Lshortfile)
			} else {
				log.SetFlags(log.LstdFlags)
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			serverCommand(),
			clientCommand(),
			mcpCommand(),
			configureCommand(),
		},
	}
}

func serverCommand() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "run the WebSocket relay server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Value: "localhost",
				Usage: "address to bind",
			},
			&cli.IntFlag{
				Name:  "port",
				Value: 8080,
				Usage: "port to listen on",
			},
			&cli.BoolFlag{
				Name:    "ngrok",
				Usage:   "also expose the relay through an ngrok tunnel",
				Sources: cli.EnvVars("NGROK_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "ngrok-auth",
				Usage:   "ngrok auth token",
				Sources: cli.EnvVars("NGROK_AUTHTOKEN"),
			},
			&cli.StringFlag{
				Name:    "ngrok-domain",
				Usage:   "custom ngrok domain (optional)",
				Sources: cli.EnvVars("NGROK_DOMAIN"),
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			addr := fmt.Sprintf("%s:%d", c.String("host"), c.Int("port"))
			return runServer(ctx, addr, ngrokOptions{
				enabled: c.Bool("ngrok"),
				auth:    c.String("ngrok-auth"),
				domain:  c.String("ngrok-domain"),
			})
		},
	}
}

type ngrokOptions struct {
	enabled bool
	auth    string
	domain  string
}

// runServer starts the relay HTTP server and blocks until a shutdown signal.
// If ngrok is enabled it also provisions a public tunnel serving the same
// handler.
func runServer(ctx context.Context, addr string, tunnelOpts ngrokOptions) error {
	registry := websocket.NewRegistry()
	apiServer := api.NewServer(registry)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      apiServer,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Printf("Relay listening on %s", addr)
		log.Printf("WebSocket: ws://%s/ws/<username>", addr)
		log.Printf("Users API: http://%s/api/users", addr)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	if tunnelOpts.enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrokTunnel(ctx, apiServer, tunnelOpts)
		}()
	}

	select {
	case sig := <-stop:
		log.Printf("Received signal: %v. Shutting down...", sig)
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	wg.Wait()
	log.Println("Relay stopped")
	return nil
}

// runNgrokTunnel serves the relay handler through an ngrok tunnel until ctx
// is cancelled.
func runNgrokTunnel(ctx context.Context, handler http.Handler, opts ngrokOptions) {
	if opts.auth == "" {
		log.Println("WARNING: ngrok enabled but no auth token provided (use --ngrok-auth or NGROK_AUTHTOKEN)")
		return
	}

	log.Println("Starting ngrok tunnel...")

	var tunnel ngrokConfig.Tunnel
	if opts.domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(opts.domain))
		log.Printf("Using custom ngrok domain: %s", opts.domain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(opts.auth))
	if err != nil {
		log.Printf("Failed to start ngrok tunnel: %v", err)
		return
	}
	defer func() {
		if err := tun.Close(); err != nil {
			log.Printf("Failed to close ngrok tunnel: %v", err)
		}
	}()

	log.Printf("Ngrok tunnel established: %s", tun.URL())

	if err := http.Serve(tun, handler); err != nil && err != http.ErrServerClosed {
		log.Printf("Ngrok server error: %v", err)
	}
	log.Println("Ngrok tunnel closed")
}

func clientCommand() *cli.Command {
	return &cli.Command{
		Name:  "client",
		Usage: "run an interactive terminal client",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "username",
				Usage: "identity to connect with (overrides saved settings)",
			},
			&cli.StringFlag{
				Name:  "server",
				Usage: "relay address, host:port (overrides saved settings)",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := resolveSettings(c.String("username"), c.String("server"))
			if err != nil {
				return err
			}

			return runClient(ctx, cfg)
		},
	}
}

// resolveSettings resolves the client configuration from flags, the saved
// settings file, and environment variables, in that order of precedence.
func resolveSettings(username, server string) (settings.Settings, error) {
	cfg, err := settings.LoadDefault()
	if err != nil {
		if !errors.Is(err, settings.ErrSettingsNotFound) {
			return settings.Settings{}, err
		}
		cfg = settings.FromEnv()
	}

	if username != "" {
		cfg.Username = username
	}
	if server != "" {
		cfg.Server = server
	}

	if !cfg.IsConfigured() {
		return settings.Settings{}, fmt.Errorf("%w: run %q or pass --username and --server",
			client.ErrNotConfigured, os.Args[0]+" configure")
	}
	return cfg, nil
}

// consoleHandler prints chat events to stdout for the terminal client.
type consoleHandler struct{}

func (consoleHandler) HandleUserList(users []string) {
	fmt.Printf("online: %s\n", strings.Join(users, ", "))
}

func (consoleHandler) HandlePrompt(from, text string) {
	fmt.Printf("%s> %s\n", from, text)
}

func (consoleHandler) HandleConnected(connected bool) {
	if connected {
		fmt.Println("[connected]")
	} else {
		fmt.Println("[disconnected]")
	}
}

// runClient supervises the relay connection in the background and reads
// commands from stdin: "<user> <message>" to send, "/users" to refresh the
// user list, "/reconnect" to force a new connection, "/quit" to exit.
func runClient(ctx context.Context, cfg settings.Settings) error {
	supervisor := client.NewSupervisor(cfg.Username, cfg.Server, consoleHandler{})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- supervisor.Run(ctx)
	}()

	fmt.Printf("Chatting as %q via %s. Type \"<user> <message>\" to send.\n", cfg.Username, cfg.Server)

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			switch {
			case line == "":
			case line == "/quit":
				cancel()
				return
			case line == "/users":
				supervisor.RequestUserList()
			case line == "/reconnect":
				supervisor.Reconnect()
			default:
				to, text, ok := strings.Cut(line, " ")
				if !ok {
					fmt.Println("usage: <user> <message>")
					continue
				}
				supervisor.Send(to, text)
			}
		}
		cancel()
	}()

	return <-errCh
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "expose the chat client over MCP stdio",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "username",
				Usage: "identity to connect with (overrides saved settings)",
			},
			&cli.StringFlag{
				Name:  "server",
				Usage: "relay address, host:port (overrides saved settings)",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := resolveSettings(c.String("username"), c.String("server"))
			if err != nil {
				return err
			}

			bridge := mcp.NewBridge()
			supervisor := client.NewSupervisor(cfg.Username, cfg.Server, bridge)
			bridge.Attach(supervisor)

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			go func() {
				if err := supervisor.Run(ctx); err != nil {
					log.Printf("Chat supervisor stopped: %v", err)
				}
			}()

			log.Println("MCP stdio server ready")
			return bridge.ServeStdio()
		},
	}
}

func configureCommand() *cli.Command {
	return &cli.Command{
		Name:  "configure",
		Usage: "persist the username and server address",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "username",
				Usage:    "identity to connect with",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "server",
				Usage:    "relay address, host:port",
				Required: true,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			path, err := settings.New(c.String("username"), c.String("server")).SaveDefault()
			if err != nil {
				return fmt.Errorf("save settings: %w", err)
			}
			fmt.Printf("Settings saved to %s\n", path)
			return nil
		},
	}
}
