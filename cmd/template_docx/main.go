package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	docximage "github.com/JJJJJJack/go-docx-image"
	"github.com/JJJJJJack/go-docx-image/internal/file"
)

const usage = `Usage:
  template_docx <document.docx> <template_values.json> [config.yaml]
  template_docx <document.docx>    list the template variables and image placeholders`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(2)
	}

	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	configFilename := ""
	if len(args) > 2 {
		configFilename = args[2]
	}

	config, err := docximage.LoadConfig(configFilename)
	if err != nil {
		return err
	}

	logger := config.NewLogger(os.Stderr)

	docxFilename := args[0]
	template, err := docximage.NewDocxTemplateFromFilename(docxFilename)
	if err != nil {
		return fmt.Errorf("creating template: %w", err)
	}
	template.SetLogger(logger)
	template.SetConcurrency(config.Concurrency)

	imageOptions := config.ImageOptions(logger)
	template.SetImageReplacer(imageOptions.GetImage)

	images, err := docximage.NewImageModule(imageOptions)
	if err != nil {
		return fmt.Errorf("creating image module: %w", err)
	}
	if err := template.AddModule(images); err != nil {
		return err
	}

	if len(args) == 1 {
		variables, err := template.Variables()
		if err != nil {
			return err
		}
		for _, v := range variables {
			fmt.Println(v)
		}
		return nil
	}

	jsonBytes, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("reading JSON file: %w", err)
	}

	if config.Async {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		err = template.ApplyContext(ctx, jsonBytes)
	} else {
		err = template.Apply(jsonBytes)
	}
	if err != nil {
		return fmt.Errorf("applying template: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(docxFilename), filepath.Ext(docxFilename))
	outputFilename, err := file.FirstMissingFile(filepath.Join(filepath.Dir(docxFilename), base+"_output.docx"))
	if err != nil {
		return err
	}

	if err := template.Save(outputFilename); err != nil {
		return fmt.Errorf("saving template: %w", err)
	}

	logger.Info("document saved", "file", outputFilename)

	return nil
}
