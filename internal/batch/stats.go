package batch

import (
	"fmt"
	"io"
	"time"
)

// Stats summarizes a batch run.
type Stats struct {
	TotalImages      int           `json:"total_images"`
	ProcessedImages  int           `json:"processed_images"`
	FailedImages     int           `json:"failed_images"`
	TotalDetections  int           `json:"total_detections"`
	WorkerCount      int           `json:"worker_count"`
	TotalDuration    time.Duration `json:"total_duration_ns"`
	AveragePerImage  time.Duration `json:"average_per_image_ns"`
	ThroughputPerSec float64       `json:"throughput_per_sec"`
}

// Stats computes throughput and counts for r.
func (r *Result) Stats() Stats {
	s := Stats{
		TotalImages:   len(r.ImagePaths),
		FailedImages:  len(r.Failures),
		WorkerCount:   r.WorkerCount,
		TotalDuration: r.Duration,
	}
	for _, res := range r.Results {
		if res == nil {
			continue
		}
		s.ProcessedImages++
		s.TotalDetections += len(res.Detections)
	}
	if s.ProcessedImages > 0 && r.Duration > 0 {
		s.AveragePerImage = r.Duration / time.Duration(s.ProcessedImages)
		s.ThroughputPerSec = float64(s.ProcessedImages) / r.Duration.Seconds()
	}
	return s
}

// PrintStats writes a human-readable summary to w.
func (r *Result) PrintStats(w io.Writer) {
	s := r.Stats()
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total images: %d\n", s.TotalImages)
	_, _ = fmt.Fprintf(w, "  Processed: %d\n", s.ProcessedImages)
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", s.FailedImages)
	_, _ = fmt.Fprintf(w, "  Detections: %d\n", s.TotalDetections)
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", s.WorkerCount)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", s.TotalDuration.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Avg per image: %v\n", s.AveragePerImage.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Throughput: %.1f images/sec\n", s.ThroughputPerSec)
}
