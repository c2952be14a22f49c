package main

import (
	"fmt"
	"os"

	"github.com/liliang-cn/askdesk/internal/domain"
	"github.com/liliang-cn/askdesk/internal/service"
	"github.com/spf13/cobra"
)

var (
	ingestTenant string
	ingestType   string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest FILE",
	Short: "Upload and process a local file for a tenant",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngest,
}

var reprocessCmd = &cobra.Command{
	Use:   "reprocess DOCUMENT_ID",
	Short: "Rerun the ingestion pipeline for a stored document",
	Args:  cobra.ExactArgs(1),
	RunE:  runReprocess,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestTenant, "tenant", "", "Tenant that owns the document")
	ingestCmd.Flags().StringVar(&ingestType, "type", "", "File type, derived from the extension when empty")
	_ = ingestCmd.MarkFlagRequired("tenant")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(reprocessCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync()

	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	doc, err := a.ingest.Upload(cmd.Context(), service.UploadRequest{
		TenantID:     ingestTenant,
		Filename:     args[0],
		DeclaredType: ingestType,
		Content:      f,
	})
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	cmd.Printf("Stored %s as document %s\n", doc.Filename, doc.ID)

	result, err := a.ingest.Process(cmd.Context(), doc.ID)
	if err != nil {
		return fmt.Errorf("processing failed (retry with: askdesk reprocess %s): %w", doc.ID, err)
	}
	printResult(cmd, result)
	return nil
}

func runReprocess(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync()

	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.ingest.Reprocess(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("reprocess failed: %w", err)
	}
	printResult(cmd, result)
	return nil
}

func printResult(cmd *cobra.Command, r *domain.IngestResult) {
	cmd.Printf("Processed document %s: %d/%d chunks embedded, %d characters of text\n",
		r.DocumentID, r.ChunksProcessed, r.TotalChunks, r.TextLength)
}
