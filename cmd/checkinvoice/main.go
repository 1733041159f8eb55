package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/aivs/invoice-compliance/internal/compliance"
	"github.com/aivs/invoice-compliance/internal/models"
	"github.com/aivs/invoice-compliance/internal/ocr"
)

func main() {
	fileFlag := flag.String("file", "", "Invoice to check (.pdf or .txt); reads stdin when omitted")
	categoryFlag := flag.String("vat-category", "", "VAT category: zero-rated-new-build, reduced-5, standard-20")
	endUserFlag := flag.String("end-user", "", "End user or intermediary confirmed: true or false")
	cisRateFlag := flag.String("cis-rate", "", "Declared CIS rate in percent")
	reportOnlyFlag := flag.Bool("report-only", false, "Print only the compliance report")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Invoice VAT/DRC/CIS compliance check

Usage:
  checkinvoice [flags]

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  checkinvoice -file invoice.pdf -vat-category reduced-5 -end-user=false
  pdftotext invoice.pdf - | checkinvoice -report-only
`)
	}
	flag.Parse()

	flags := models.ParseFlags(*categoryFlag, *endUserFlag, *cisRateFlag)
	if err := run(os.Stdout, os.Stdin, *fileFlag, flags, *reportOnlyFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(out io.Writer, stdin io.Reader, path string, flags models.ComplianceFlags, reportOnly bool) error {
	text, err := readInvoice(stdin, path)
	if err != nil {
		return err
	}

	result := compliance.NewEngine(compliance.DefaultPolicy()).Check(text, flags)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if reportOnly {
		return enc.Encode(result.Report)
	}
	return enc.Encode(result)
}

func readInvoice(stdin io.Reader, path string) (string, error) {
	if path == "" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	text, err := ocr.NewPDFExtractor().ExtractFromUpload(mime.TypeByExtension(filepath.Ext(path)), path, data)
	if err != nil {
		return "", fmt.Errorf("failed to extract text from %s: %w", path, err)
	}
	return text, nil
}
