// ABOUTME: Entry point for the SampleDeck converter
// ABOUTME: Parses CLI flags and runs a batch import, a remote conversion or the service
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/sampledeck/sampledeck-go/internal/client"
	"github.com/sampledeck/sampledeck-go/internal/discovery"
	"github.com/sampledeck/sampledeck-go/internal/library"
	"github.com/sampledeck/sampledeck-go/internal/protocol"
	"github.com/sampledeck/sampledeck-go/internal/server"
	"github.com/sampledeck/sampledeck-go/internal/ui"
	"github.com/sampledeck/sampledeck-go/internal/version"
	"github.com/sampledeck/sampledeck-go/pkg/audio"
)

var (
	outDir   = flag.String("out", "out", "Output directory for converted files")
	format   = flag.String("format", "wav", "Output container: wav or aiff")
	encoding = flag.String("encoding", "pcm16", "Sample encoding: pcm16 or float32")
	channels = flag.String("channels", "full", "Channels to export: full, left, right or mono")
	workers  = flag.Int("workers", runtime.NumCPU(), "Concurrent decodes")
	serve    = flag.Bool("serve", false, "Run the WebSocket conversion service")
	port     = flag.Int("port", 8928, "Conversion service port")
	name     = flag.String("name", "", "Service friendly name (default: hostname-sampledeck)")
	remote   = flag.String("remote", "", "Convert through a running service at host:port, or \"auto\" to find one via mDNS")
	noMDNS   = flag.Bool("no-mdns", false, "Disable mDNS advertisement of the service")
	logFile  = flag.String("log-file", "sampledeck.log", "Log file path")
	debug    = flag.Bool("debug", false, "Enable debug logging")
	noTUI    = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "%s\n\n", version.String())
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: sampledeck [flags] files or directories...\n")
		fmt.Fprintf(flag.CommandLine.Output(), "       sampledeck -serve [flags]\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	useTUI := !*noTUI

	// Set up logging
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI && *remote == "" {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		// Streaming logs mode: log to both stdout and file
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	if *serve {
		runServer(useTUI)
		return
	}

	opts, err := exportOptions()
	if err != nil {
		log.Fatalf("Invalid export options: %v", err)
	}

	paths, err := collectFiles(flag.Args())
	if err != nil {
		log.Fatalf("Failed to collect input files: %v", err)
	}
	if len(paths) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *remote != "" {
		if failed := runRemote(ctx, paths); failed > 0 {
			os.Exit(1)
		}
		return
	}

	if failed := runImport(ctx, paths, opts, useTUI); failed > 0 {
		os.Exit(1)
	}
}

// exportOptions builds export options from the flags
func exportOptions() (library.ExportOptions, error) {
	opts := library.ExportOptions{Container: *format}
	if *format != "wav" && *format != "aiff" {
		return opts, fmt.Errorf("unsupported format: %s (supported: wav, aiff)", *format)
	}

	sampleFormat, err := audio.ParseSampleFormat(*encoding)
	if err != nil {
		return opts, err
	}
	channelMode, err := audio.ParseChannelMode(*channels)
	if err != nil {
		return opts, err
	}

	opts.Encode.Format = sampleFormat
	opts.Encode.Channels = channelMode
	return opts, nil
}

// collectFiles expands directories into the regular files beneath them
func collectFiles(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}

		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Type().IsRegular() {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return paths, nil
}

// runImport converts files locally and returns the number that failed
func runImport(ctx context.Context, paths []string, opts library.ExportOptions, useTUI bool) int {
	files := make([]library.File, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", path, err)
		}
		files = append(files, library.File{Name: path, Data: data})
	}

	log.Printf("Importing %d files with %d workers to %s", len(files), *workers, *outDir)

	lib := library.New()
	imp := library.NewImporter(library.Config{Workers: *workers, Debug: *debug}, lib)

	var tuiProgress *ui.Progress
	var tuiDone chan struct{}
	if useTUI {
		program, progress := ui.Run(paths)
		tuiProgress = progress
		tuiDone = make(chan struct{})
		go func() {
			defer close(tuiDone)
			if _, err := program.Run(); err != nil {
				log.Printf("TUI error: %v", err)
			}
		}()
	}

	failed := 0
	imp.OnProgress(func(p library.Progress) {
		outputPath := ""
		if p.Result.Err == nil {
			path, err := library.ExportToDir(p.Result.Sample, *outDir, opts)
			if err != nil {
				log.Printf("Export failed: %s: %v", p.Result.Name, err)
				p.Result.Err = err
			} else {
				outputPath = path
				log.Printf("[%d/%d] %s -> %s", p.Done, p.Total, p.Result.Name, path)
			}
		}
		if p.Result.Err != nil {
			failed++
		}
		if tuiProgress != nil {
			tuiProgress.Report(p, outputPath)
		}
	})

	start := time.Now()
	_, err := imp.ImportAll(ctx, files)
	elapsed := time.Since(start)
	if err != nil {
		log.Printf("Import stopped: %v", err)
		failed = max(failed, 1)
	}

	log.Printf("Imported %d of %d files in %v", len(files)-failed, len(files), elapsed.Round(time.Millisecond))

	if tuiProgress != nil {
		tuiProgress.Done(elapsed)
		select {
		case <-tuiDone:
		case <-ctx.Done():
		}
	}
	return failed
}

// runRemote converts files through a running service
func runRemote(ctx context.Context, paths []string) int {
	addr := *remote
	if addr == "auto" {
		found, err := discoverServer(ctx)
		if err != nil {
			log.Fatalf("No server found: %v", err)
		}
		addr = found.Addr()
	}

	c := client.NewClient(client.Config{ServerAddr: addr, Debug: *debug})
	if err := c.Connect(ctx); err != nil {
		log.Fatalf("Connection failed: %v", err)
	}
	defer c.Close()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	failed := 0
	for i, path := range paths {
		if ctx.Err() != nil {
			break
		}

		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("Failed to read %s: %v", path, err)
			failed++
			continue
		}

		result, encoded, err := c.Convert(protocol.ConvertRequest{
			Name:     filepath.Base(path),
			Format:   *format,
			Encoding: *encoding,
			Channels: *channels,
		}, data)
		if err != nil {
			var convErr *client.ConvertError
			if errors.As(err, &convErr) {
				log.Printf("[%d/%d] %s: %s", i+1, len(paths), path, convErr.Message)
				failed++
				continue
			}
			log.Fatalf("Conversion failed: %v", err)
		}

		out, err := library.WriteUnique(*outDir, result.Name, result.Extension, encoded)
		if err != nil {
			log.Printf("Failed to write %s: %v", path, err)
			failed++
			continue
		}
		log.Printf("[%d/%d] %s -> %s (%s, %d Hz)", i+1, len(paths), path, out, result.SourceKind, result.NativeRate)
	}
	return failed
}

// discoverServer browses the LAN for a conversion service
func discoverServer(ctx context.Context) (*discovery.ServerInfo, error) {
	log.Printf("Starting server discovery...")
	disc := discovery.NewManager(discovery.Config{Debug: *debug})
	defer disc.Stop()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return disc.Browse(ctx)
}

// runServer runs the conversion service until interrupted
func runServer(useTUI bool) {
	serverName := *name
	if serverName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		serverName = fmt.Sprintf("%s-sampledeck", hostname)
	}

	log.Printf("Starting %s: %s on port %d", version.String(), serverName, *port)
	if *debug {
		log.Printf("Debug logging enabled")
	}
	log.Printf("Logging to: %s", *logFile)

	srv := server.New(server.Config{
		Port:       *port,
		Name:       serverName,
		Debug:      *debug,
		UseTUI:     useTUI,
		EnableMDNS: !*noMDNS,
	}, library.New())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received %v signal, shutting down gracefully...", sig)
		srv.Stop()
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Printf("Server stopped")
}
