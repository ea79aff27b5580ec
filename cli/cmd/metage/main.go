package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/metage/metage/cli/internal/client"
	"github.com/metage/metage/cli/internal/stats"
	"github.com/metage/metage/pkg/metabolic"
	"github.com/metage/metage/pkg/types"
)

// Exit codes.
const (
	exitOK      = 0
	exitError   = 1
	exitInvalid = 2
)

const usage = `usage: metage <command> [flags]

commands:
  estimate   compute a metabolic age estimate (locally, or remotely with -server)
  stats      summarise a metage-server /metrics endpoint
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return exitError
	}
	switch args[0] {
	case "estimate":
		return runEstimate(ctx, args[1:], stdout, stderr)
	case "stats":
		return runStats(ctx, args[1:], stdout, stderr)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return exitOK
	default:
		fmt.Fprintf(stderr, "metage: unknown command %q\n\n%s", args[0], usage)
		return exitError
	}
}

func runEstimate(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("estimate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	age := fs.String("age", "", "age in years")
	sex := fs.String("sex", string(metabolic.SexFemale), "female, male or other (does not affect the result)")
	height := fs.String("height", "", "height in cm")
	weight := fs.String("weight", "", "weight in kg")
	hr := fs.String("hr", "", "resting heart rate in bpm")
	activity := fs.String("activity", string(metabolic.ActivityModerate), "sedentary, light, moderate, active or very_active")
	server := fs.String("server", "", "metage-server gRPC address (host:port); empty computes locally")
	keyEnv := fs.String("api-key-env", "METAGE_API_KEY", "environment variable holding the server API key")
	header := fs.String("api-key-header", "x-api-key", "metadata key carrying the API key")
	caFile := fs.String("ca-file", "", "PEM CA bundle enabling TLS to the server")
	timeout := fs.Duration("timeout", 10*time.Second, "per-attempt timeout for remote calls")
	asJSON := fs.Bool("json", false, "print the full result as JSON")
	verbose := fs.Bool("v", false, "debug logging on stderr")
	if err := fs.Parse(args); err != nil {
		return exitError
	}
	setupLogging(stderr, *verbose)

	req := &types.EstimateRequest{
		Age:       types.FormValue(*age),
		Sex:       *sex,
		HeightCm:  types.FormValue(*height),
		WeightKg:  types.FormValue(*weight),
		RestingHR: types.FormValue(*hr),
		Activity:  *activity,
	}

	var (
		resp *types.EstimateResponse
		err  error
	)
	if *server == "" {
		resp, err = estimateLocal(req)
	} else {
		resp, err = estimateRemote(ctx, client.Options{
			Endpoint: *server,
			APIKey:   os.Getenv(*keyEnv),
			Header:   *header,
			CAFile:   *caFile,
			Timeout:  *timeout,
		}, req)
	}
	if err != nil {
		if isInvalidInput(err) {
			fmt.Fprintln(stderr, metabolic.InvalidInputMessage)
			return exitInvalid
		}
		fmt.Fprintf(stderr, "metage: %v\n", err)
		return exitError
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			fmt.Fprintf(stderr, "metage: %v\n", err)
			return exitError
		}
		return exitOK
	}
	fmt.Fprintf(stdout, "Metabolic age: %s\n", resp.Display.MetabolicAge)
	fmt.Fprintf(stdout, "BMI: %s\n", resp.Display.BMI)
	fmt.Fprintf(stdout, "Age delta: %s\n", resp.Display.AgeDelta)
	fmt.Fprintln(stdout, resp.Disclaimer)
	return exitOK
}

func estimateLocal(req *types.EstimateRequest) (*types.EstimateResponse, error) {
	res, err := metabolic.Estimate(req.Form().Input())
	if err != nil {
		slog.Debug("estimate rejected", "err", err)
		return nil, err
	}
	resp := types.NewEstimateResponse(res)
	return &resp, nil
}

func estimateRemote(ctx context.Context, opts client.Options, req *types.EstimateRequest) (*types.EstimateResponse, error) {
	c, err := client.Dial(ctx, opts)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.Estimate(ctx, req)
}

// isInvalidInput reports whether err is the engine's invalid-input error,
// locally or as returned by the server.
func isInvalidInput(err error) bool {
	return errors.Is(err, metabolic.ErrInvalidInput) || status.Code(err) == codes.InvalidArgument
}

func runStats(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(stderr)
	url := fs.String("url", "http://localhost:8080/metrics", "metage-server metrics URL")
	verbose := fs.Bool("v", false, "debug logging on stderr")
	if err := fs.Parse(args); err != nil {
		return exitError
	}
	setupLogging(stderr, *verbose)

	s, err := stats.Fetch(ctx, nil, *url)
	if err != nil {
		fmt.Fprintf(stderr, "metage: %v\n", err)
		return exitError
	}
	if err := stats.Write(stdout, s); err != nil {
		fmt.Fprintf(stderr, "metage: %v\n", err)
		return exitError
	}
	return exitOK
}

func setupLogging(w io.Writer, verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}
