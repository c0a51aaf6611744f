package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/smith-xyz/golang-pathgen/pkg/config"
	"github.com/smith-xyz/golang-pathgen/pkg/flowgraph"
	"github.com/smith-xyz/golang-pathgen/pkg/generator"
	"github.com/smith-xyz/golang-pathgen/pkg/metrics"
	"github.com/smith-xyz/golang-pathgen/pkg/models"
	"github.com/smith-xyz/golang-pathgen/pkg/utils"
	"github.com/smith-xyz/golang-pathgen/pkg/version"
)

func main() {
	var (
		packagePath     = flag.String("package", "", "Go package pattern(s) to analyze, comma separated (e.g. ./...)")
		graphFile       = flag.String("graph", "", "Read the flow graph from an edgelist dump instead of Go packages")
		oracleFile      = flag.String("oracle", "", "Handler oracle YAML to use with -graph")
		interestingFile = flag.String("interesting", "", "File listing interesting functions, one per line")
		functions       = flag.String("functions", "", "Comma-separated interesting functions, added to -interesting")
		maxLength       = flag.Int("p", 200, "Maximum path length, 1-1000")
		callers         = flag.Bool("c", false, "Emit CALLER_<function> annotations")
		errorPaths      = flag.Bool("e", false, "Emit error path annotations")
		returnMarker    = flag.String("r", "DEFAULT", "Marker appended to RETURN_ outside error handlers")
		algorithm       = flag.String("algo", "cha", "Call graph algorithm for indirect calls (static, cha, rta, vta)")
		workers         = flag.Int("workers", 4, "Seeds searched concurrently")
		outputFile      = flag.String("o", "", "Write records to this file instead of stdout")
		dotFile         = flag.String("dot", "", "Write the flow graph in Graphviz format to this file")
		dotStart        = flag.String("dot-start", "", "Restrict -dot to what is reachable from this label")
		edgelistFile    = flag.String("edgelist", "", "Write the flow graph as an edgelist to this file")
		dumpOracle      = flag.String("dump-oracle", "", "Write the handler oracle as YAML to this file")
		metricsFile     = flag.String("metrics-file", "", "Write run metrics in Prometheus text format to this file")
		configFile      = flag.String("config", "", "TOML configuration file")
		verbose         = flag.Bool("v", false, "Verbose output")
		showVersion     = flag.Bool("version", false, "Show version information and exit")
	)
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Println(version.GetVersionWithCommit())
		os.Exit(0)
	}

	dumping := *dotFile != "" || *edgelistFile != "" || *dumpOracle != ""
	if (*packagePath == "") == (*graphFile == "") {
		fmt.Fprintln(os.Stderr, "Exactly one of -package and -graph is required")
		flag.Usage()
		os.Exit(1)
	}
	if *interestingFile == "" && *functions == "" && !dumping {
		fmt.Fprintln(os.Stderr, "An -interesting file is required")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags given on the command line win over the configuration file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "p":
			cfg.Paths.MaxLength = *maxLength
		case "c":
			cfg.Paths.CallerAnnotations = *callers
		case "e":
			cfg.Paths.ErrorAnnotations = *errorPaths
		case "r":
			cfg.Paths.ReturnMarker = *returnMarker
		case "algo":
			cfg.SSA.Algorithm = *algorithm
		case "workers":
			cfg.Paths.Workers = *workers
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Every input is checked before the graph is built so that a bad
	// invocation leaves no partial output behind.
	interesting, err := loadInputs(inputs{
		graphFile:        *graphFile,
		oracleFile:       *oracleFile,
		interestingFile:  *interestingFile,
		functions:        *functions,
		dumpOracle:       *dumpOracle,
		errorAnnotations: cfg.Paths.ErrorAnnotations,
	})
	if err != nil {
		log.Fatalf("Invalid input: %v", err)
	}

	logger := utils.NewLogger(*verbose)
	vlog := utils.NewVerboseLogger(*verbose)

	var src *generator.Source
	if *graphFile != "" {
		src, err = generator.FromEdgelist(*graphFile, *oracleFile)
	} else {
		src, err = generator.FromPackages(".", utils.ParseCommaDelimited(*packagePath), cfg, logger, *verbose)
	}
	if err != nil {
		log.Fatalf("Failed to build flow graph: %v", err)
	}
	vlog.Logf("Flow graph: %d vertices, %d edges\n", src.Graph.NumVertices(), src.Graph.NumEdges())

	opts := models.PathOptions{
		MaxLength:         cfg.Paths.MaxLength,
		IterationFactor:   cfg.Paths.IterationFactor,
		CallerAnnotations: cfg.Paths.CallerAnnotations,
		ErrorAnnotations:  cfg.Paths.ErrorAnnotations && interesting != nil,
		ReturnMarker:      cfg.Paths.ReturnMarker,
		Workers:           cfg.Paths.Workers,
	}

	run := metrics.NewRun()
	gen, err := generator.New(src, opts, run, logger, *verbose)
	if err != nil {
		log.Fatalf("Invalid options: %v (use -package, or -graph with -oracle)", err)
	}

	if err := writeDumps(src, *dotFile, *dotStart, *edgelistFile, *dumpOracle); err != nil {
		log.Fatalf("Failed to dump flow graph: %v", err)
	}

	if interesting == nil {
		return
	}
	vlog.Logf("Interesting functions: %v\n", interesting.Sorted())

	var out io.Writer = os.Stdout
	if *outputFile != "" {
		file, err := utils.SafeCreateFile(*outputFile)
		if err != nil {
			log.Fatalf("Failed to create output file: %v", err)
		}
		defer file.Close()
		out = file
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	summary, err := gen.Run(ctx, interesting, out)
	if err != nil {
		log.Fatalf("Path generation failed: %v", err)
	}
	vlog.Logf("Wrote %d records for %d seeds\n", summary.Records, summary.Seeds)

	run.Report(os.Stderr)
	if *metricsFile != "" {
		if err := run.WriteTextfile(*metricsFile); err != nil {
			log.Fatalf("Failed to write metrics: %v", err)
		}
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.DefaultConfig()
}

// inputs are the files and settings checked before any work starts
type inputs struct {
	graphFile        string
	oracleFile       string
	interestingFile  string
	functions        string
	dumpOracle       string
	errorAnnotations bool
}

// loadInputs checks that the named files exist and reads the interesting
// functions. The returned set is nil when the run only dumps the graph.
func loadInputs(in inputs) (config.Interesting, error) {
	for _, file := range []string{in.graphFile, in.oracleFile, in.interestingFile} {
		if file != "" && !utils.FileExists(file) {
			return nil, fmt.Errorf("no such file: %s", file)
		}
	}

	if in.graphFile != "" && in.oracleFile == "" && in.dumpOracle != "" {
		return nil, fmt.Errorf("-dump-oracle with -graph needs -oracle")
	}

	if in.interestingFile == "" && in.functions == "" {
		return nil, nil
	}

	if in.errorAnnotations && in.graphFile != "" && in.oracleFile == "" {
		return nil, fmt.Errorf("error annotations with -graph need -oracle")
	}

	interesting := make(config.Interesting)
	if in.interestingFile != "" {
		loaded, err := config.LoadInteresting(in.interestingFile)
		if err != nil {
			return nil, err
		}
		interesting = loaded
	}
	interesting.Add(utils.ParseCommaDelimited(in.functions)...)
	return interesting, nil
}

func writeDumps(src *generator.Source, dotFile, dotStart, edgelistFile, oracleFile string) error {
	if dotFile != "" && dotStart != "" && src.Graph.Lookup(dotStart) == flowgraph.NoVertex {
		return fmt.Errorf("%w: %s", flowgraph.ErrUnknownStart, dotStart)
	}
	if oracleFile != "" && src.Handlers == nil {
		return fmt.Errorf("no handler oracle to write to %s", oracleFile)
	}

	if dotFile != "" {
		if err := writeFile(dotFile, func(w io.Writer) error { return src.Graph.WriteDot(w, dotStart) }); err != nil {
			return err
		}
	}
	if edgelistFile != "" {
		if err := writeFile(edgelistFile, src.Graph.WriteEdgelist); err != nil {
			return err
		}
	}
	if oracleFile != "" {
		if err := writeFile(oracleFile, src.Handlers.Save); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(filename string, write func(io.Writer) error) error {
	file, err := utils.SafeCreateFile(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := write(file); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	fmt.Fprintf(os.Stderr, "Wrote %s\n", filename)
	return nil
}

func usage() {
	fmt.Fprintf(os.Stderr, "%s\n\n", version.GetFullVersionString())
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  %s -package ./... -interesting functions.txt [options]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s -graph graph.edges [-oracle oracle.yaml] -interesting functions.txt [options]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
}
