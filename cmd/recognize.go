package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/glasslink/faceid/internal/config"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize <image>",
	Short: "Recognize a face against the enrolled population",
	Long: `Recognize the person in a photo against the configured identity store.
Prints the matched user and confidence, or the nearest miss when nobody
falls within the tolerance.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecognize,
}

func init() {
	rootCmd.AddCommand(recognizeCmd)
}

func runRecognize(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	st, cleanup, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ex := buildExtractor(cfg)
	defer ex.Close()

	eng := buildEngine(cfg, ex, st)

	result, err := eng.Recognize(ctx, data)
	if err != nil {
		return fmt.Errorf("recognition failed: %w", err)
	}

	if result.Matched {
		name := result.UserID
		if rec, err := st.Get(ctx, result.UserID); err == nil && rec.DisplayName != "" {
			name = rec.DisplayName
		}
		fmt.Printf("Matched: %s (%s)\n", name, result.UserID)
		fmt.Printf("  Distance:   %.4f\n", *result.Distance)
		fmt.Printf("  Confidence: %.1f%%\n", result.Confidence*100)
		return nil
	}

	fmt.Println("No match")
	if result.Distance != nil {
		fmt.Printf("  Nearest: %s at distance %.4f (tolerance %.2f)\n",
			result.UserID, *result.Distance, eng.Tolerance())
	} else {
		fmt.Println("  Nobody is enrolled yet")
	}
	return nil
}
