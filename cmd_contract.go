package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/arjunpratapdas/contractiq/config"
	"github.com/arjunpratapdas/contractiq/model"
	"github.com/arjunpratapdas/contractiq/service"
	"github.com/spf13/cobra"
)

var (
	docType      string
	country      string
	subdivision  string
	location     string
	requirements string
	outDir       string
	formats      []string
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the generation prompt for a form selection",
	Long: `Build the prompt that would be sent to the generation provider.
No network call is made.`,
	RunE: runPrompt,
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a contract and write it as html and/or rtf",
	RunE:  runGenerate,
}

var jurisdictionsCmd = &cobra.Command{
	Use:   "jurisdictions",
	Short: "List countries and their subdivisions",
	RunE:  runJurisdictions,
}

func init() {
	for _, cmd := range []*cobra.Command{promptCmd, generateCmd} {
		cmd.Flags().StringVarP(&docType, "type", "t", string(model.DocumentLegalAgreement), "document type key")
		cmd.Flags().StringVar(&country, "country", "", "country code (required)")
		cmd.Flags().StringVar(&subdivision, "subdivision", "", "state or province code")
		cmd.Flags().StringVar(&location, "location", "", "project location, e.g. a city")
		cmd.Flags().StringVarP(&requirements, "requirements", "r", "", "specific requirements for the contract")
		cmd.MarkFlagRequired("country")
	}
	generateCmd.Flags().StringVarP(&outDir, "out", "o", ".", "directory the exports are written to")
	generateCmd.Flags().StringSliceVarP(&formats, "format", "f", []string{string(service.FormatHTML)}, "export formats: html, rtf")
}

// formUpdate validates the flags the same way the API validates form edits
func formUpdate() service.FormUpdate {
	dt := model.DocumentType(docType)
	return service.FormUpdate{
		DocumentType:    &dt,
		Country:         &country,
		Subdivision:     &subdivision,
		ProjectLocation: &location,
		Requirements:    &requirements,
	}
}

func runPrompt(cmd *cobra.Command, args []string) error {
	tools := service.NewToolsService(service.NewMemorySessionStore(1), nil, nil)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	session, err := tools.CreateSession(ctx)
	if err != nil {
		return err
	}
	session, err = tools.UpdateForm(ctx, session.ID, formUpdate())
	if err != nil {
		return err
	}

	form := session.Form
	prompt, err := service.BuildPrompt(form.DocumentType, service.Resolve(form.Country, form.Subdivision, form.ProjectLocation), form.Requirements, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), prompt)
	return nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	exportFormats := make([]service.ExportFormat, 0, len(formats))
	for _, f := range formats {
		format, err := service.ParseExportFormat(f)
		if err != nil {
			return err
		}
		exportFormats = append(exportFormats, format)
	}

	cfg, err := loadConfigOrDefault(configPath)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	generator, err := service.NewGenerator(ctx, &cfg.Generation)
	if err != nil {
		return err
	}
	return generateTo(ctx, cmd, generator, exportFormats)
}

func generateTo(ctx context.Context, cmd *cobra.Command, generator service.Generator, exportFormats []service.ExportFormat) error {
	tools := service.NewToolsService(service.NewMemorySessionStore(1), generator, nil)
	session, err := tools.CreateSession(ctx)
	if err != nil {
		return err
	}
	if _, err := tools.UpdateForm(ctx, session.ID, formUpdate()); err != nil {
		return err
	}

	contract, err := tools.GenerateContract(ctx, session.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "generated %s for %s with %s\n", contract.DocumentLabel, contract.Jurisdiction, contract.Provider)

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	for _, format := range exportFormats {
		result, err := tools.ExportContract(ctx, session.ID, format)
		if err != nil {
			return err
		}
		path := filepath.Join(outDir, result.Filename)
		if err := os.WriteFile(path, result.Body, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
	}
	return nil
}

func runJurisdictions(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, c := range service.Countries() {
		if !c.Subdivisions.Defined() {
			fmt.Fprintf(w, "%s\t%s\t-\n", c.Code, c.Label)
			continue
		}
		codes := make([]string, 0)
		for _, s := range c.Subdivisions.Entries() {
			codes = append(codes, s.Code)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.Code, c.Label, strings.Join(codes, " "))
	}
	return w.Flush()
}

// loadConfigOrDefault falls back to defaults plus environment when the file is missing
func loadConfigOrDefault(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}
