package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/glasslink/faceid/internal/config"
	"github.com/glasslink/faceid/internal/engine"
)

var (
	enrollName   string
	enrollEmail  string
	enrollUserID string
)

var enrollCmd = &cobra.Command{
	Use:   "enroll [angle=]image...",
	Short: "Enroll a person from face photos",
	Long: `Enroll a person into the identity store from one or more photos.
Each argument is an image path, optionally prefixed with a capture angle:

  faceid enroll --name "Ada" front=ada1.jpg left=ada2.jpg right=ada3.jpg

Valid angles are front, left, right, up and down. A bare path counts as
front. Angles that fail the quality gate are skipped as long as at least
one photo survives; the surviving vectors are averaged into one identity.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().StringVar(&enrollName, "name", "", "Display name (required)")
	enrollCmd.Flags().StringVar(&enrollEmail, "email", "", "Contact email")
	enrollCmd.Flags().StringVar(&enrollUserID, "user-id", "", "User ID (defaults to a new UUID)")
	enrollCmd.MarkFlagRequired("name")
}

// parseAngleArgs turns "angle=path" arguments into the enrollment image map.
func parseAngleArgs(args []string) (map[engine.Angle][]byte, error) {
	valid := map[string]engine.Angle{
		"front": engine.AngleFront,
		"left":  engine.AngleLeft,
		"right": engine.AngleRight,
		"up":    engine.AngleUp,
		"down":  engine.AngleDown,
	}

	images := make(map[engine.Angle][]byte)
	for _, arg := range args {
		angle := engine.AngleFront
		path := arg
		if before, after, found := strings.Cut(arg, "="); found {
			a, ok := valid[strings.ToLower(before)]
			if !ok {
				return nil, fmt.Errorf("unknown angle %q (valid: front, left, right, up, down)", before)
			}
			angle = a
			path = after
		}

		if _, exists := images[angle]; exists {
			return nil, fmt.Errorf("angle %s supplied twice", angle)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		images[angle] = data
	}
	return images, nil
}

func runEnroll(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	images, err := parseAngleArgs(args)
	if err != nil {
		return err
	}

	st, cleanup, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ex := buildExtractor(cfg)
	defer ex.Close()

	eng := buildEngine(cfg, ex, st)

	userID := enrollUserID
	if userID == "" {
		userID = uuid.NewString()
	}

	rec, err := eng.Register(ctx, engine.Registration{
		UserID:       userID,
		DisplayName:  enrollName,
		ContactEmail: enrollEmail,
		Images:       images,
	})
	if err != nil {
		return fmt.Errorf("enrollment failed: %w", err)
	}

	fmt.Printf("Enrolled %s as %s (%d angles supplied)\n", rec.DisplayName, rec.UserID, len(images))
	return nil
}
