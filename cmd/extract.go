package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/placematch/internal/config"
	"github.com/kozaktomas/placematch/internal/features"
	"github.com/kozaktomas/placematch/internal/gallery"
)

var extractCmd = &cobra.Command{
	Use:   "extract IMAGE",
	Short: "Show the keypoints extracted from one image",
	Long: `Run the feature extractor on a single image and print its keypoints. Useful
to check how many features an image yields with a given channel or budget.

Examples:
  placematch extract data/query/000123.jpg
  placematch extract --channel luma --features 1000 photo.png
  placematch extract --json photo.jpg`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	defaults := config.Defaults()
	extractCmd.Flags().String("channel", defaults.Extractor.Channel, "Image channel to extract from: red, green, blue or luma")
	extractCmd.Flags().Int("features", defaults.Extractor.Features, "Maximum keypoints")
	extractCmd.Flags().Int("max-dimension", defaults.Extractor.MaxDimension, "Downscale images larger than this before extraction (0 = never)")
	extractCmd.Flags().Int("limit", 20, "Keypoints to list in text output (0 = all)")
	extractCmd.Flags().Bool("json", false, "Output as JSON")
}

type keypointOutput struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Angle      float64 `json:"angle"`
	Response   float64 `json:"response"`
	Descriptor string  `json:"descriptor"`
}

type extractOutput struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Width       int              `json:"width"`
	Height      int              `json:"height"`
	Channel     string           `json:"channel"`
	Fingerprint string           `json:"fingerprint"`
	Keypoints   []keypointOutput `json:"keypoints"`
}

func runExtract(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	limit := mustGetInt(cmd, "limit")

	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Extractor.Channel = stringFlagOr(cmd, "channel", cfg.Extractor.Channel)
	cfg.Extractor.Features = intFlagOr(cmd, "features", cfg.Extractor.Features)
	cfg.Extractor.MaxDimension = intFlagOr(cmd, "max-dimension", cfg.Extractor.MaxDimension)

	fc, err := cfg.FeatureConfig()
	if err != nil {
		return err
	}

	path := args[0]
	rec, err := features.NewExtractor(fc).ExtractFile(gallery.ImageID(path), path)
	if err != nil {
		return err
	}

	out := extractOutput{
		ID:          rec.ID,
		Name:        rec.Name,
		Width:       rec.Width,
		Height:      rec.Height,
		Channel:     fc.Channel.String(),
		Fingerprint: fc.Fingerprint(),
		Keypoints:   make([]keypointOutput, rec.Len()),
	}
	for i, kp := range rec.Keypoints {
		d := rec.Descriptors[i]
		out.Keypoints[i] = keypointOutput{
			X:          kp.X,
			Y:          kp.Y,
			Angle:      kp.Angle,
			Response:   kp.Response,
			Descriptor: fmt.Sprintf("%016x%016x%016x%016x", d[0], d[1], d[2], d[3]),
		}
	}

	if jsonOutput {
		return outputJSON(cmd.OutOrStdout(), out)
	}

	fmt.Printf("Image:       %s (id %s)\n", out.Name, out.ID)
	fmt.Printf("Size:        %dx%d\n", out.Width, out.Height)
	fmt.Printf("Channel:     %s\n", out.Channel)
	fmt.Printf("Fingerprint: %s\n", out.Fingerprint)
	fmt.Printf("Keypoints:   %d\n\n", len(out.Keypoints))

	shown := out.Keypoints
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tX\tY\tANGLE\tRESPONSE")
	for i, kp := range shown {
		fmt.Fprintf(w, "%d\t%.1f\t%.1f\t%.1f\t%.0f\n", i+1, kp.X, kp.Y, kp.Angle, kp.Response)
	}
	_ = w.Flush()
	if len(shown) < len(out.Keypoints) {
		fmt.Printf("... %d more (use --limit 0 to list all)\n", len(out.Keypoints)-len(shown))
	}
	return nil
}
