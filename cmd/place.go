package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/huanfeng/xapk-installer/internal/errors"
	"github.com/huanfeng/xapk-installer/internal/i18n"
	"github.com/huanfeng/xapk-installer/pkg/utils"
	"github.com/huanfeng/xapk-installer/pkg/xapk"
)

var (
	placeID      string
	placeOBBRoot string
	placeName    string
)

var placeCmd = &cobra.Command{
	Use:   "place <obb-file>",
	Short: "Copy an OBB file to <obb-root>/<package>/",
	Long: `Copy a single OBB file to the directory Android expects. The package name is
taken from --id, or from the file name when it follows main.<version>.<package>.obb.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src := args[0]
		info, err := os.Stat(src)
		if err != nil {
			return errors.NewError(errors.ErrorTypeNotFound, "OBB_NOT_FOUND", fmt.Sprintf("OBB file not found: %s", src))
		}
		if info.IsDir() {
			return errors.NewValidationError("OBB_IS_DIR", fmt.Sprintf("%s is a directory", src))
		}

		fileName := placeName
		if fileName == "" {
			fileName = filepath.Base(src)
		}

		res, err := placementIdentifier(placeID, fileName)
		if err != nil {
			return err
		}
		utils.GetGlobalLogger().Debug("Placing %s for %s (%s)", fileName, res.Identifier, res.Source)

		root := appConfig.Placement.OBBRoot
		if placeOBBRoot != "" {
			root = placeOBBRoot
		}

		placer := xapk.NewPlacer(root, utils.GetGlobalLogger())
		dest, err := placer.Place(src, res.Identifier, fileName)
		if err != nil {
			return err
		}

		if outputFormat != "text" {
			return writeStructured(cmd.OutOrStdout(), outputFormat, placeResult{
				PlacementSummary: xapk.PlacementSummary{File: fileName, Destination: dest},
				Resolution:       res,
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", okColor.Sprint("✓"),
			i18n.T("msg.placed", map[string]interface{}{"File": fileName, "Destination": dest}))
		return nil
	},
}

// placeResult is the structured output of the place command
type placeResult struct {
	xapk.PlacementSummary `yaml:",inline"`
	Resolution            xapk.Resolution `json:"resolution" yaml:"resolution"`
}

// placementIdentifier picks the package an OBB file belongs to: the explicit
// id when given, otherwise the one encoded in the file name.
func placementIdentifier(explicit, fileName string) (xapk.Resolution, error) {
	if explicit != "" {
		id, ok := xapk.ParseIdentifier(explicit)
		if !ok {
			return xapk.Resolution{}, errors.NewValidationError("INVALID_IDENTIFIER", fmt.Sprintf("invalid package name %q", explicit))
		}
		return xapk.Resolution{Identifier: id, Source: xapk.SourceExplicit}, nil
	}
	if name, ok := xapk.ParseAssetName(fileName); ok {
		return xapk.Resolution{Identifier: name.Package, Source: xapk.SourceAssetName, Detail: fileName}, nil
	}
	return xapk.Resolution{}, errors.NewIdentifierError(fileName).WithSuggestion("Pass the package name with --id")
}

func init() {
	rootCmd.AddCommand(placeCmd)

	placeCmd.Flags().StringVar(&placeID, "id", "", "Package name the OBB file belongs to")
	placeCmd.Flags().StringVar(&placeOBBRoot, "obb-root", "", "Base directory for OBB files")
	placeCmd.Flags().StringVar(&placeName, "name", "", "File name to place the OBB under (default: source file name)")
}
