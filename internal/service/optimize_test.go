package service

import (
	"math"
	"testing"
)

func TestEstimateSavingsResizeAndCompress(t *testing.T) {
	got := EstimateSavings(AnalyzedImage{Size: 1000000, Width: 4096, Height: 4096, Type: "JPEG", ImageType: "product"})

	if got.ResizeSavings != 750000 || got.CompressionSavings != 62500 || got.TotalSavings != 812500 {
		t.Errorf("savings = resize %d, compression %d, total %d", got.ResizeSavings, got.CompressionSavings, got.TotalSavings)
	}
	if got.EstimatedOptimizedSize != 187500 || got.SavingsPercent != 81 {
		t.Errorf("optimized = %d (%d%%), want 187500 (81%%)", got.EstimatedOptimizedSize, got.SavingsPercent)
	}
	if got.NewDimensions != (dimensions{2048, 2048}) || !got.NeedsResize {
		t.Errorf("NewDimensions = %+v, NeedsResize = %v", got.NewDimensions, got.NeedsResize)
	}
	if len(got.Recommendations) != 2 || got.Recommendations[0].Type != "resize" {
		t.Errorf("Recommendations = %+v", got.Recommendations)
	}
}

func TestEstimateSavingsLargePNGSuggestsWebP(t *testing.T) {
	got := EstimateSavings(AnalyzedImage{Size: 600000, Width: 100, Height: 100, Type: "png", ImageType: "thumbnail"})

	if got.NeedsResize || got.ResizeSavings != 0 {
		t.Errorf("unexpected resize: %+v", got)
	}
	if got.CompressionSavings != 90000 {
		t.Errorf("CompressionSavings = %d, want 90000", got.CompressionSavings)
	}
	last := got.Recommendations[len(got.Recommendations)-1]
	if last.Type != "format" || math.Round(last.Savings) != 240000 || last.SavingsPercent != 40 {
		t.Errorf("last recommendation = %+v", last)
	}
}

func TestEstimateSavingsWithoutMeasurements(t *testing.T) {
	got := EstimateSavings(AnalyzedImage{Size: 0, Type: "JPEG"})
	if got.TotalSavings != 0 || len(got.Recommendations) != 0 {
		t.Errorf("EstimateSavings() = %+v, want no savings", got)
	}
}

func TestOptimizeSummary(t *testing.T) {
	report := Optimize([]AnalyzedImage{
		{Size: 1000000, Width: 4096, Height: 4096, Type: "JPEG", ImageType: "product"},
		{Size: 600000, Width: 100, Height: 100, Type: "PNG", ImageType: "thumbnail"},
		{URL: "https://example.com/broken.png"},
	})

	sum := report.Summary
	if sum.TotalImages != 3 || sum.OptimizableImages != 2 || sum.ResizableImages != 1 {
		t.Errorf("counts = %+v", sum)
	}
	if sum.TotalOriginalSize != 1600000 || sum.TotalSavings != 902500 {
		t.Errorf("sizes = original %d, savings %d", sum.TotalOriginalSize, sum.TotalSavings)
	}
	if sum.TotalSavingsPercent != 56 {
		t.Errorf("TotalSavingsPercent = %d, want 56", sum.TotalSavingsPercent)
	}
	if len(report.Images) != 3 || report.Images[2].URL != "https://example.com/broken.png" {
		t.Errorf("images = %+v", report.Images)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{
		0:          "0 Bytes",
		500:        "500 Bytes",
		1536:       "1.5 KB",
		1048576:    "1 MB",
		1610612736: "1.5 GB",
	}
	for n, want := range tests {
		if got := FormatBytes(n); got != want {
			t.Errorf("FormatBytes(%d) = %q, want %q", n, got, want)
		}
	}
}
