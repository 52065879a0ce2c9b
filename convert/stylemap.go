package convert

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"dxc/docx"
	"dxc/state"
)

// StyleMap is the stylemap command action. It promotes direct formatting of
// a single document in memory and prints resulting style map rules, with
// --catalog the flattened style catalog is printed as well.
func StyleMap(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	log := env.Log.Named("stylemap")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	src, err := filepath.Abs(src)
	if err != nil {
		return err
	}

	kind, err := detectFile(src)
	if err != nil {
		return fmt.Errorf("unable to check file type: %w", err)
	}
	if kind != inputPackage {
		return fmt.Errorf("%w (%s)", ErrNotPackage, src)
	}

	prep, err := newPipeline(env, log).Prepare(ctx, src, true)
	if err != nil {
		return err
	}
	for _, m := range prep.Messages {
		log.Debug(m.Text, zap.String("type", string(m.Type)))
	}

	w := cmd.Root().Writer
	if cmd.Bool("catalog") {
		fmt.Fprintln(w, prep.Catalog.String())
	}
	fmt.Fprintln(w, docx.FormatStyleMap(prep.StyleMap))
	return nil
}
