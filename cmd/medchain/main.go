// Command medchain is a CLI client for the blockchain-backed medical
// records service: role-gated record browsing, content retrieval, record
// writes, and an assistant conversation over record content.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/medchain/medchain/internal/config"
	"github.com/medchain/medchain/internal/errs"
	"github.com/medchain/medchain/internal/gateway/fabric"
	"github.com/medchain/medchain/internal/gateway/inference"
	"github.com/medchain/medchain/internal/gateway/ipfs"
	"github.com/medchain/medchain/internal/history"
	"github.com/medchain/medchain/internal/keystore"
	"github.com/medchain/medchain/internal/model"
	"github.com/medchain/medchain/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func usage() {
	fmt.Fprintf(os.Stderr, `medchain CLI
Usage:
  medchain [-v] [-timeout d] <cmd> [args]

Commands:
  version
  status                                         (connect, resolve roles)
  register-patient  -name <n> -id <patient id> -secret <s>
  register-doctor   -addr <address>              (admin only)
  records           [-patient <address>]         (doctors may query others)
  open              -index <i> [-patient <address>] [-o file]
  add               -patient <address> -type <t> -file <f> -doctor <name> [-note <n>]
  ask               -index <i> -q <question>     (patient flow)
  predict           -q <symptoms text>           (doctor flow)
  history                                        (archived assistant turns)
`)
	os.Exit(2)
}

// app bundles the connected gateways and services for one invocation.
type app struct {
	cfg     config.Config
	log     *zap.Logger
	chain   *fabric.Gateway
	store   *ipfs.Store
	assist  *inference.Client
	keys    *keystore.Store
	session *service.SessionService
	records *service.RecordService
}

func newApp(cfg config.Config, log *zap.Logger) (*app, error) {
	chain, err := fabric.Connect(cfg, log)
	if err != nil {
		return nil, err
	}
	store := ipfs.New(cfg.StoreAPIURL, cfg.StoreGatewayURL, cfg.StoreToken, log)
	assist := inference.New(cfg.PatientAPIURL, cfg.DoctorAPIURL, cfg.AssistantTimeout, log)
	keys := keystore.New("")
	session := service.NewSessionService(chain, log)
	records := service.NewRecordService(chain, store, keys, session, log)
	return &app{
		cfg: cfg, log: log,
		chain: chain, store: store, assist: assist, keys: keys,
		session: session, records: records,
	}, nil
}

func (a *app) Close() {
	a.records.CloseCurrent()
	_ = a.chain.Close()
}

// resolve runs role resolution; every gated command calls it first.
func (a *app) resolve(ctx context.Context) model.RoleState {
	state, err := a.session.Resolve(ctx)
	if err != nil {
		fail(err)
	}
	return state
}

func newLogger(verbose bool) *zap.Logger {
	if verbose {
		l, _ := zap.NewDevelopment()
		return l
	}
	// Quiet by default: the CLI's stdout is the interface.
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	l, _ := cfg.Build()
	return l
}

func main() {
	verbose := flag.Bool("v", false, "verbose logging")
	timeout := flag.Duration("timeout", 60*time.Second, "operation timeout")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)

	if cmd == "version" {
		fmt.Printf("medchain %s (%s)\n", version, buildDate)
		return
	}

	logger := newLogger(*verbose)
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		fail(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	a, err := newApp(cfg, logger)
	if err != nil {
		fail(err)
	}
	defer a.Close()

	switch cmd {

	case "status":
		state := a.resolve(ctx)
		printJSON(map[string]any{
			"account":   state.Account,
			"isAdmin":   state.IsAdmin,
			"isDoctor":  state.IsDoctor,
			"isPatient": state.IsPatient,
		})

	case "register-patient":
		fs := flag.NewFlagSet("register-patient", flag.ExitOnError)
		name := fs.String("name", "", "full name")
		id := fs.String("id", "", "patient id")
		secret := fs.String("secret", "", "personal secret for the record key")
		_ = fs.Parse(flag.Args()[1:])
		if *name == "" || *id == "" || *secret == "" {
			fmt.Fprintln(os.Stderr, "need -name, -id and -secret")
			os.Exit(1)
		}

		a.resolve(ctx)
		if err := a.records.RegisterPatient(ctx, *name, *id, *secret); err != nil {
			fail(err)
		}
		fmt.Println("registered as patient")

	case "register-doctor":
		fs := flag.NewFlagSet("register-doctor", flag.ExitOnError)
		addr := fs.String("addr", "", "doctor address")
		_ = fs.Parse(flag.Args()[1:])
		if *addr == "" {
			fmt.Fprintln(os.Stderr, "need -addr")
			os.Exit(1)
		}

		a.resolve(ctx)
		if err := a.records.RegisterDoctor(ctx, *addr); err != nil {
			fail(err)
		}
		fmt.Println("registered as doctor:", *addr)

	case "records":
		fs := flag.NewFlagSet("records", flag.ExitOnError)
		patient := fs.String("patient", "", "patient address (doctors only; default self)")
		_ = fs.Parse(flag.Args()[1:])

		a.resolve(ctx)
		list, err := a.records.Load(ctx, *patient)
		if err != nil {
			fail(err)
		}
		// An empty catalog is a valid result, not a loading state.
		if len(list) == 0 {
			fmt.Println("no records found")
			return
		}
		printCatalog(list)

	case "open":
		fs := flag.NewFlagSet("open", flag.ExitOnError)
		patient := fs.String("patient", "", "patient address (default self)")
		index := fs.Int("index", -1, "record index")
		out := fs.String("o", "", "write payload to file instead of rendering")
		_ = fs.Parse(flag.Args()[1:])
		if *index < 0 {
			fmt.Fprintln(os.Stderr, "need -index")
			os.Exit(1)
		}

		a.resolve(ctx)
		rec := mustRecord(ctx, a, *patient, *index)
		handle, err := a.records.Open(ctx, *patient, rec)
		if err != nil {
			fail(err)
		}
		defer handle.Release()

		if *out != "" {
			if err := os.WriteFile(*out, handle.Content.Bytes, 0o600); err != nil {
				fail(err)
			}
			fmt.Println("written:", *out)
			return
		}
		renderContent(rec, handle)

	case "add":
		fs := flag.NewFlagSet("add", flag.ExitOnError)
		patient := fs.String("patient", "", "patient address")
		recordType := fs.String("type", "", "record type (Prescription, Lab Report, ...)")
		file := fs.String("file", "", "record file")
		doctor := fs.String("doctor", "", "doctor display name")
		note := fs.String("note", "", "additional notes")
		_ = fs.Parse(flag.Args()[1:])
		if *patient == "" || *recordType == "" || *file == "" || *doctor == "" {
			fmt.Fprintln(os.Stderr, "need -patient, -type, -file and -doctor")
			os.Exit(1)
		}

		data, err := os.ReadFile(*file)
		if err != nil {
			fail(err)
		}

		a.resolve(ctx)
		cid, err := a.records.AddRecord(ctx, *patient, *recordType, *file, data, *doctor, *note)
		if err != nil {
			fail(err)
		}
		fmt.Println("record added:", cid)

	case "ask":
		fs := flag.NewFlagSet("ask", flag.ExitOnError)
		index := fs.Int("index", -1, "record index")
		q := fs.String("q", "", "question")
		_ = fs.Parse(flag.Args()[1:])
		if *index < 0 || *q == "" {
			fmt.Fprintln(os.Stderr, "need -index and -q")
			os.Exit(1)
		}

		state := a.resolve(ctx)
		rec := mustRecord(ctx, a, "", *index)
		handle, err := a.records.Open(ctx, "", rec)
		if err != nil {
			fail(err)
		}
		defer handle.Release()

		assistant, archive := newAssistant(a, state.Account)
		if archive != nil {
			defer archive.Close()
		}
		assistant.SetContent(&handle.Content, rec.ContentID)
		if _, err := assistant.Ask(ctx, *q); err != nil {
			printTranscript(assistant.Transcript())
			fail(err)
		}
		printTranscript(assistant.Transcript())

	case "predict":
		fs := flag.NewFlagSet("predict", flag.ExitOnError)
		q := fs.String("q", "", "symptoms text")
		_ = fs.Parse(flag.Args()[1:])
		if *q == "" {
			fmt.Fprintln(os.Stderr, "need -q")
			os.Exit(1)
		}

		state := a.resolve(ctx)
		if !state.IsDoctor {
			fail(fmt.Errorf("%w: prediction is a doctor flow", errs.ErrUnauthorized))
		}

		assistant, archive := newAssistant(a, state.Account)
		if archive != nil {
			defer archive.Close()
		}
		if _, err := assistant.Predict(ctx, *q); err != nil {
			printTranscript(assistant.Transcript())
			fail(err)
		}
		printTranscript(assistant.Transcript())

	case "history":
		state := a.resolve(ctx)
		archive, err := history.Open(a.cfg.HistoryPath)
		if err != nil {
			fail(err)
		}
		defer archive.Close()

		entries, err := archive.List(state.Account)
		if err != nil {
			fail(err)
		}
		if len(entries) == 0 {
			fmt.Println("no archived conversations")
			return
		}
		for _, e := range entries {
			marker := ""
			if e.Err {
				marker = " [error]"
			}
			fmt.Printf("%s %s%s: %s\n", e.At.Format(model.DisplayTimeLayout), e.Speaker, marker, e.Text)
		}

	default:
		usage()
	}
}

// newAssistant builds an assistant session with the history archive when it
// opens; a broken archive degrades to in-memory only.
func newAssistant(a *app, account string) (*service.AssistantService, *history.Store) {
	archive, err := history.Open(a.cfg.HistoryPath)
	if err != nil {
		a.log.Warn("history archive unavailable", zap.Error(err))
		archive = nil
	}
	return service.NewAssistantService(a.assist, archive, account, a.log), archive
}

// mustRecord loads the catalog and picks the record at index.
func mustRecord(ctx context.Context, a *app, patient string, index int) model.RecordSummary {
	list, err := a.records.Load(ctx, patient)
	if err != nil {
		fail(err)
	}
	if index >= len(list) {
		fail(fmt.Errorf("record index %d out of range (have %d)", index, len(list)))
	}
	return list[index]
}

func fail(err error) {
	switch {
	case errors.Is(err, errs.ErrProviderUnavailable):
		fmt.Fprintln(os.Stderr, "no identity available; check MEDCHAIN_CERT/MEDCHAIN_KEY:", err)
	case errors.Is(err, errs.ErrConnectionDenied):
		fmt.Fprintln(os.Stderr, "identity refused:", err)
	case errors.Is(err, errs.ErrContractUnavailable):
		fmt.Fprintln(os.Stderr, "contract unreachable:", err)
	case errors.Is(err, errs.ErrUnauthorized):
		fmt.Fprintln(os.Stderr, "not allowed:", err)
	case errors.Is(err, errs.ErrAssistantUnavailable):
		fmt.Fprintln(os.Stderr, "assistant unavailable:", err)
	default:
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(1)
}

func printCatalog(list []model.RecordSummary) {
	for _, rec := range list {
		fmt.Printf("%3d  %-14s  %-20s  %s  %s\n",
			rec.Index, rec.RecordType, "Dr. "+rec.AuthorName, rec.RecordedAtDisplay(), rec.ContentID)
	}
	fmt.Println(strconv.Itoa(len(list)), "record(s)")
}
