// Package main provides a line-oriented terminal client for editing one
// consultation against a clinic server (real or the simulator).
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/clinicdesk/consult/internal/clinic"
	"github.com/clinicdesk/consult/internal/domain/consultation"
	"github.com/clinicdesk/consult/internal/domain/prescription"
	"github.com/clinicdesk/consult/internal/editor"
)

// Config holds client configuration
type Config struct {
	BaseURL       string
	AutosaveURL   string
	FinalizeURL   string
	AppointmentID string
	Debug         bool
}

func main() {
	cfg := loadConfig()

	logger := zap.NewNop()
	if cfg.Debug {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	client, err := clinic.New(clinic.Config{
		BaseURL:     cfg.BaseURL,
		AutosaveURL: cfg.AutosaveURL,
		FinalizeURL: cfg.FinalizeURL,
	}, nil, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "clinic client:", err)
		os.Exit(1)
	}

	session, err := editor.New(editor.Config{
		AppointmentID: cfg.AppointmentID,
	}, client, logger,
		editor.WithStatusFunc(func(u editor.StatusUpdate) {
			switch u.Kind {
			case editor.StatusSaving:
				fmt.Println("  [saving...]")
			case editor.StatusSaved:
				fmt.Printf("  [saved %s]\n", u.At.Format("15:04:05"))
			}
		}),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, "editor session:", err)
		os.Exit(1)
	}
	session.AttachPrescriptionSnapshot()

	fmt.Printf("consultation editor, appointment %s (type 'help')\n", cfg.AppointmentID)
	repl(session)

	// Push any unsaved delta before exiting.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := session.Flush(ctx); err != nil && !errors.Is(err, editor.ErrSessionClosed) {
		fmt.Fprintln(os.Stderr, "flush:", err)
	}
	session.Close()
}

func repl(session *editor.Session) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd, rest, _ := strings.Cut(line, " ")

		switch cmd {
		case "quit", "exit":
			return
		case "help":
			printHelp()
		case "tag":
			handleTag(session, rest)
		case "untag":
			handleUntag(session, rest)
		case "vital":
			handleVital(session, rest)
		case "note":
			handleNote(session, rest)
		case "row":
			handleRow(session, rest)
		case "delrow":
			handleDelRow(session, rest)
		case "template":
			handleTemplate(session, rest)
		case "finalize":
			handleFinalize(session)
		case "show":
			printState(session)
		default:
			fmt.Println("unknown command, type 'help'")
		}
	}
}

func printHelp() {
	fmt.Print(`commands:
  tag <symptoms|diagnosis|advice> <text>   add a tag
  untag <field> <text>                     remove a tag
  vital <bp|pulse|spo2|temperature|weight|follow_up_date> <value>
  note <field> <text>                      set a free-text field
  row <index> <medicine> | <dose> | <days> [| <notes>]
  delrow <index>                           remove a row
  template search <query>                  find prescription templates
  template apply <id>                      replace rows from a template
  template save <name>                     save current items as a template
  finalize                                 lock and get the document URL
  show                                     print the current draft
  quit
`)
}

func parseField(name string) (consultation.Field, bool) {
	for _, f := range consultation.TagFields {
		if string(f) == name {
			return f, true
		}
	}
	return "", false
}

func handleTag(session *editor.Session, rest string) {
	name, text, _ := strings.Cut(rest, " ")
	field, ok := parseField(name)
	if !ok {
		fmt.Println("unknown field:", name)
		return
	}
	added, err := session.AddTag(field, text)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	if !added {
		fmt.Println("(unchanged)")
		return
	}
	fmt.Printf("%s: %s\n", field, session.TagJoin(field))
}

func handleUntag(session *editor.Session, rest string) {
	name, text, _ := strings.Cut(rest, " ")
	field, ok := parseField(name)
	if !ok {
		fmt.Println("unknown field:", name)
		return
	}
	removed, err := session.RemoveTag(field, text)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	if !removed {
		fmt.Println("(unchanged)")
		return
	}
	fmt.Printf("%s: %s\n", field, session.TagJoin(field))
}

func handleVital(session *editor.Session, rest string) {
	name, value, _ := strings.Cut(rest, " ")
	if err := session.SetVital(name, value); err != nil {
		fmt.Println("error:", err)
	}
}

func handleNote(session *editor.Session, rest string) {
	name, value, _ := strings.Cut(rest, " ")
	if err := session.SetFreeText(name, value); err != nil {
		fmt.Println("error:", err)
	}
}

func handleRow(session *editor.Session, rest string) {
	idxStr, fieldsStr, _ := strings.Cut(rest, " ")
	index, err := strconv.Atoi(idxStr)
	if err != nil {
		fmt.Println("row index must be a number")
		return
	}

	parts := strings.Split(fieldsStr, "|")
	item := prescription.Item{}
	for i, p := range parts {
		p = strings.TrimSpace(p)
		switch i {
		case 0:
			item.Medicine = p
		case 1:
			item.Dose = p
		case 2:
			item.Days = p
		case 3:
			item.Notes = p
		}
	}

	// Grow the grid as needed so "row N" always has a target.
	for index >= len(session.Rows()) {
		if _, err := session.AddRow(); err != nil {
			fmt.Println("error:", err)
			return
		}
	}
	if err := session.UpdateRow(index, item); err != nil {
		fmt.Println("error:", err)
	}
}

func handleDelRow(session *editor.Session, rest string) {
	index, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil {
		fmt.Println("row index must be a number")
		return
	}
	if err := session.RemoveRow(index); err != nil {
		fmt.Println("error:", err)
	}
}

func handleTemplate(session *editor.Session, rest string) {
	sub, arg, _ := strings.Cut(rest, " ")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch sub {
	case "search":
		refs, err := session.SearchTemplates(ctx, arg)
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		if len(refs) == 0 {
			fmt.Println("no templates found")
			return
		}
		for _, ref := range refs {
			fmt.Printf("  %s  %s\n", ref.ID, ref.Name)
		}
	case "apply":
		if err := session.ApplyTemplate(ctx, strings.TrimSpace(arg)); err != nil {
			fmt.Println("error:", err)
			return
		}
		printState(session)
	case "save":
		if err := session.SaveAsTemplate(ctx, arg); err != nil {
			fmt.Println("error:", err)
			return
		}
		fmt.Println("template saved")
	default:
		fmt.Println("usage: template <search|apply|save> ...")
	}
}

func handleFinalize(session *editor.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	docURL, err := session.Finalize(ctx)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println("finalized, document at:", docURL)
}

func printState(session *editor.Session) {
	for _, field := range consultation.TagFields {
		if joined := session.TagJoin(field); joined != "" {
			fmt.Printf("%s: %s\n", field, joined)
		}
	}
	for name, value := range session.Vitals() {
		if value != "" {
			fmt.Printf("%s: %s\n", name, value)
		}
	}
	for i, row := range session.Rows() {
		fmt.Printf("row %d: %s | %s | %s | %s\n", i, row.Medicine, row.Dose, row.Days, row.Notes)
	}
	if snapshot := session.SnapshotText(); snapshot != "" {
		fmt.Println("prescription:")
		fmt.Println(snapshot)
	}
	if session.Locked() {
		fmt.Println("status: locked")
	}
}

func loadConfig() Config {
	godotenv.Load()

	baseURL := os.Getenv("CLINIC_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8085"
	}
	appointmentID := os.Getenv("APPOINTMENT_ID")
	if appointmentID == "" {
		appointmentID = "appt-demo"
	}
	autosaveURL := os.Getenv("AUTOSAVE_URL")
	if autosaveURL == "" {
		autosaveURL = strings.TrimRight(baseURL, "/") + "/autosave/" + appointmentID
	}

	return Config{
		BaseURL:       baseURL,
		AutosaveURL:   autosaveURL,
		FinalizeURL:   os.Getenv("FINALIZE_URL"),
		AppointmentID: appointmentID,
		Debug:         os.Getenv("DEBUG") != "",
	}
}
