// Command pagescan analyzes a scanned comic page: it segments panels,
// detects speech bubbles, recognizes page text, and reconciles the two.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"

	"comicscan/internal/config"
	"comicscan/internal/imgutil"
	"comicscan/internal/ocr"
	"comicscan/internal/pipeline"

	_ "golang.org/x/image/tiff"
)

func main() {
	imagePath := flag.String("image", "", "Path to page image (PNG, JPEG, or TIFF)")
	configPath := flag.String("config", "", "Path to TOML config (optional)")
	transcribe := flag.Bool("transcribe", false, "OCR each detected bubble")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	if *imagePath == "" {
		fmt.Println("Usage: pagescan -image <path> [-config <path>] [-transcribe] [-verbose]")
		os.Exit(1)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	f, err := os.Open(*imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open image: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	src, format, err := image.Decode(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to decode image: %v\n", err)
		os.Exit(1)
	}
	bounds := src.Bounds()
	fmt.Printf("Loaded %s image: %dx%d pixels\n", format, bounds.Dx(), bounds.Dy())

	mat, err := imgutil.ToMat(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to convert image: %v\n", err)
		os.Exit(1)
	}
	defer mat.Close()

	var engines []ocr.Engine
	tess, err := ocr.NewTesseract(cfg.OCR.Languages...)
	if err != nil {
		log.Warn("tesseract unavailable, continuing without it", "error", err)
	} else {
		defer tess.Close()
		engines = append(engines, tess)
	}

	analyzer := pipeline.New(cfg, engines, log)
	result, err := analyzer.AnalyzePage(context.Background(), mat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Analysis failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nPanels: %d\n", len(result.Panels))
	for _, p := range result.Panels {
		fmt.Printf("  panel %d: x=%d y=%d w=%d h=%d\n",
			p.Rank, p.Bounds.X, p.Bounds.Y, p.Bounds.Width, p.Bounds.Height)
	}

	fmt.Printf("\nBubbles: %d\n", len(result.Bubbles))
	for i, b := range result.Bubbles {
		fmt.Printf("  bubble %d: x=%d y=%d w=%d h=%d\n", i, b.X, b.Y, b.Width, b.Height)
	}

	fmt.Printf("\nWords: %d  Page coverage: %.2f\n", len(result.Words), result.PageCoverage)

	if *transcribe {
		fmt.Println("\nTranscription:")
		for _, bt := range analyzer.TranscribeBubbles(context.Background(), mat, result.Bubbles) {
			fmt.Printf("  [%s] %q\n", bt.Source, bt.Text)
		}
	}
}
