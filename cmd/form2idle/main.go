package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"form2idle/internal/config"
	"form2idle/internal/output"
	"form2idle/internal/printer"
)

var version = "dev"

type Flags struct {
	Help            bool
	Version         bool
	Verbose         bool
	ETA             bool
	Wait            bool
	JSON            bool
	Plain           bool
	Protocol        string
	Port            int
	Serial          string
	AccessCodeFile  string
	AccessCodeStdin bool
	IntervalSeconds int
	TimeoutSeconds  int
	Printer         string
	ConfigPath      string
}

type ResolvedPrinter struct {
	Host       string
	Protocol   string
	Port       int
	Serial     string
	AccessCode string
	Username   string
	Timeout    time.Duration
	Interval   time.Duration
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fl, rest, err := parseFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 2
	}
	if fl.Version {
		fmt.Fprintln(os.Stdout, version)
		return 0
	}
	if fl.Help {
		printUsage()
		return 0
	}
	if fl.ETA && !fl.Verbose {
		fmt.Fprintln(os.Stderr, "-e requires -v")
		return 2
	}
	if len(rest) > 1 {
		fmt.Fprintf(os.Stderr, "Unexpected argument: %s\n", rest[1])
		printUsage()
		return 2
	}
	host := ""
	if len(rest) == 1 {
		host = rest[0]
	}

	res, err := resolvePrinter(fl, host)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		printUsage()
		return 2
	}

	src, err := newSource(res)
	if err != nil {
		return errExit(err)
	}
	defer src.Close()

	format := selectFormat(fl)
	report := func(now time.Time, status printer.Status) {
		printCheck(os.Stdout, format, fl, now, status)
	}

	if fl.Wait {
		_, err := printer.WaitIdle(src, res.Interval, time.Sleep, report)
		if err != nil {
			return errExit(err)
		}
		return 0
	}

	now := time.Now()
	status, err := src.Fetch()
	if err != nil {
		return errExit(err)
	}
	report(now, status)
	if status.Idle() {
		return 0
	}
	return 1
}

func parseFlags(args []string) (Flags, []string, error) {
	fs := flag.NewFlagSet("form2idle", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var fl Flags
	fs.BoolVar(&fl.Help, "help", false, "show help")
	fs.BoolVar(&fl.Help, "h", false, "show help")
	fs.BoolVar(&fl.Version, "version", false, "show version")
	fs.BoolVar(&fl.Verbose, "verbose", false, "print current time and remaining print time")
	fs.BoolVar(&fl.Verbose, "v", false, "print current time and remaining print time")
	fs.BoolVar(&fl.ETA, "eta", false, "print remaining print time as estimated time of arrival")
	fs.BoolVar(&fl.ETA, "e", false, "print remaining print time as estimated time of arrival")
	fs.BoolVar(&fl.Wait, "wait", false, "wait for print to finish")
	fs.BoolVar(&fl.Wait, "w", false, "wait for print to finish")
	fs.BoolVar(&fl.JSON, "json", false, "json output")
	fs.BoolVar(&fl.Plain, "plain", false, "plain output")
	fs.StringVar(&fl.Protocol, "protocol", "", "status protocol: http, form2 or mqtt")
	fs.IntVar(&fl.Port, "port", 0, "status endpoint port")
	fs.StringVar(&fl.Serial, "serial", "", "printer serial (mqtt)")
	fs.StringVar(&fl.AccessCodeFile, "access-code-file", "", "path to access code file (mqtt)")
	fs.BoolVar(&fl.AccessCodeStdin, "access-code-stdin", false, "read access code from stdin (mqtt)")
	fs.IntVar(&fl.IntervalSeconds, "interval", 0, "seconds between polls in wait mode")
	fs.IntVar(&fl.TimeoutSeconds, "timeout", 0, "network timeout in seconds")
	fs.StringVar(&fl.Printer, "printer", "", "printer profile")
	fs.StringVar(&fl.ConfigPath, "config", "", "config file path")

	if err := fs.Parse(args); err != nil {
		return fl, nil, err
	}
	if fl.JSON && fl.Plain {
		return fl, nil, errors.New("--json and --plain are mutually exclusive")
	}
	return fl, fs.Args(), nil
}

func resolvePrinter(fl Flags, hostArg string) (ResolvedPrinter, error) {
	cwd, _ := os.Getwd()
	projectPath := config.ProjectConfigPath(cwd)
	userPath, err := config.UserConfigPath()
	if err != nil {
		return ResolvedPrinter{}, err
	}

	userCfgPath := userPath
	if fl.ConfigPath != "" {
		userCfgPath = fl.ConfigPath
	}

	userCfg, err := config.Read(userCfgPath)
	if err != nil {
		return ResolvedPrinter{}, err
	}
	projectCfg, err := config.Read(projectPath)
	if err != nil {
		return ResolvedPrinter{}, err
	}
	cfg := config.Merge(userCfg, projectCfg)

	profileName := firstNonEmpty(fl.Printer, os.Getenv("FORM2IDLE_PROFILE"), cfg.DefaultProfile)
	if profileName == "" && len(cfg.Profiles) == 1 {
		for k := range cfg.Profiles {
			profileName = k
		}
	}
	profile := config.Profile{}
	if profileName != "" {
		if p, ok := cfg.Profiles[profileName]; ok {
			profile = p
		}
	}

	res := ResolvedPrinter{
		Host:     firstNonEmpty(hostArg, os.Getenv("FORM2IDLE_HOST"), profile.Host),
		Protocol: firstNonEmpty(fl.Protocol, os.Getenv("FORM2IDLE_PROTOCOL"), profile.Protocol, "http"),
		Port:     firstNonZero(fl.Port, envInt("FORM2IDLE_PORT"), profile.Port),
		Serial:   firstNonEmpty(fl.Serial, os.Getenv("FORM2IDLE_SERIAL"), profile.Serial),
		Username: firstNonEmpty(profile.Username, "bblp"),
		Timeout:  time.Duration(firstNonZero(fl.TimeoutSeconds, envInt("FORM2IDLE_TIMEOUT"), profile.TimeoutSeconds, 10)) * time.Second,
		Interval: time.Duration(firstNonZero(fl.IntervalSeconds, envInt("FORM2IDLE_INTERVAL"), profile.IntervalSeconds, 5)) * time.Second,
	}

	if res.Host == "" {
		return ResolvedPrinter{}, errors.New("missing printer host; pass HOST or set a profile")
	}

	switch res.Protocol {
	case "http", "form2":
	case "mqtt":
		if res.Serial == "" {
			return ResolvedPrinter{}, errors.New("missing printer serial; use --serial or config")
		}
		accessFile := firstNonEmpty(fl.AccessCodeFile, os.Getenv("FORM2IDLE_ACCESS_CODE_FILE"), profile.AccessCodeFile)
		code, err := resolveAccessCode(accessFile, fl.AccessCodeStdin)
		if err != nil {
			return ResolvedPrinter{}, err
		}
		res.AccessCode = code
	default:
		return ResolvedPrinter{}, fmt.Errorf("unknown protocol %q; expected http, form2 or mqtt", res.Protocol)
	}

	return res, nil
}

func resolveAccessCode(path string, fromStdin bool) (string, error) {
	if fromStdin {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		code := strings.TrimSpace(string(data))
		if code == "" {
			return "", errors.New("access code from stdin is empty")
		}
		return code, nil
	}
	if path == "" {
		return "", errors.New("missing access code; use --access-code-file or --access-code-stdin")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	code := strings.TrimSpace(string(data))
	if code == "" {
		return "", errors.New("access code file is empty")
	}
	return code, nil
}

func newSource(res ResolvedPrinter) (printer.Source, error) {
	switch res.Protocol {
	case "http":
		return printer.NewHTTPSource(res.Host, res.Port, res.Timeout), nil
	case "form2":
		return printer.NewForm2Source(res.Host, res.Port, res.Timeout), nil
	case "mqtt":
		return printer.NewMQTTSource(res.Host, res.AccessCode, res.Serial, res.Username, res.Port, res.Timeout)
	default:
		return nil, fmt.Errorf("unknown protocol %q", res.Protocol)
	}
}

func printCheck(w io.Writer, format output.Format, fl Flags, now time.Time, status printer.Status) {
	remaining := time.Duration(status.RemainingSeconds) * time.Second
	eta := now.Add(remaining)

	switch format {
	case output.JSON:
		_ = output.WriteJSON(w, map[string]any{
			"timestamp":         now.Format(output.TimeLayout),
			"idle":              status.Idle(),
			"state":             status.State,
			"remaining_seconds": status.RemainingSeconds,
			"eta":               eta.Format(output.TimeLayout),
		})
	case output.Plain:
		_ = output.WritePlainKV(w, map[string]string{
			"timestamp":         now.Format(output.TimeLayout),
			"idle":              strconv.FormatBool(status.Idle()),
			"state":             status.State,
			"remaining_seconds": strconv.Itoa(status.RemainingSeconds),
			"eta":               eta.Format(output.TimeLayout),
		})
	default:
		if !fl.Verbose {
			return
		}
		if fl.ETA {
			fmt.Fprintf(w, "%s, %s\n", now.Format(output.TimeLayout), eta.Format(output.TimeLayout))
		} else {
			fmt.Fprintf(w, "%s, %s\n", now.Format(output.TimeLayout), output.FormatClock(remaining))
		}
	}
}

func selectFormat(fl Flags) output.Format {
	if fl.JSON {
		return output.JSON
	}
	if fl.Plain {
		return output.Plain
	}
	return output.Human
}

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return i
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonZero(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

func errExit(err error) int {
	fmt.Fprintln(os.Stderr, "Error:", err)
	return 1
}

func printUsage() {
	fmt.Fprintln(os.Stdout, "form2idle - check if a networked 3D printer is idle")
	fmt.Fprintln(os.Stdout, "")
	fmt.Fprintln(os.Stdout, "USAGE:")
	fmt.Fprintln(os.Stdout, "  form2idle [flags] HOST")
	fmt.Fprintln(os.Stdout, "")
	fmt.Fprintln(os.Stdout, "Exits 0 when the printer is idle, 1 when it is busy or unreachable.")
	fmt.Fprintln(os.Stdout, "")
	fmt.Fprintln(os.Stdout, "FLAGS:")
	fmt.Fprintln(os.Stdout, "  -v, --verbose          print current time and remaining print time")
	fmt.Fprintln(os.Stdout, "  -e, --eta              with -v, print the finish time instead of the duration")
	fmt.Fprintln(os.Stdout, "  -w, --wait             poll until the printer is idle")
	fmt.Fprintln(os.Stdout, "  --json | --plain       machine-readable output")
	fmt.Fprintln(os.Stdout, "  --interval <seconds>   wait-mode poll interval (default 5)")
	fmt.Fprintln(os.Stdout, "  --timeout <seconds>    network timeout (default 10)")
	fmt.Fprintln(os.Stdout, "  --protocol <name>      http (default), form2 or mqtt")
	fmt.Fprintln(os.Stdout, "  --port <n>             status endpoint port")
	fmt.Fprintln(os.Stdout, "  --serial <sn>          printer serial (mqtt)")
	fmt.Fprintln(os.Stdout, "  --access-code-file <path>")
	fmt.Fprintln(os.Stdout, "  --access-code-stdin")
	fmt.Fprintln(os.Stdout, "  --printer <name>       config profile")
	fmt.Fprintln(os.Stdout, "  --config <path>        config file path")
	fmt.Fprintln(os.Stdout, "  -h, --help")
	fmt.Fprintln(os.Stdout, "  --version")
}
