package epub

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gosimple/slug"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"s2e/config"
	"s2e/site"
	"s2e/state"
)

// Run implements the build subcommand: it loads the rendered site, derives
// navigation, manifest and reading order from it and produces the output
// archive next to the rendered files.
func Run(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("build")

	dir := cmd.Args().Get(0)
	if len(dir) == 0 {
		return errors.New("no site directory has been specified")
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if cmd.Args().Len() > 1 {
		log.Warn("Malformed command line, too many arguments", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}

	env.Overwrite = cmd.Bool("overwrite")

	log.Info("Packaging starting", zap.String("site", dir))
	defer func(start time.Time) {
		log.Info("Packaging completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	s, err := site.Load(dir)
	if err != nil {
		return fmt.Errorf("unable to load site: %w", err)
	}

	ecfg := &env.Cfg.Epub

	if len(ecfg.Theme) > 0 {
		log.Debug("Site was rendered with theme", zap.String("theme", ecfg.Theme))
	}
	if _, err := language.Parse(ecfg.Metadata.Language); err != nil {
		log.Warn("Package language is not a recognized tag",
			zap.String("language", ecfg.Metadata.Language), zap.Error(err))
	}

	if ecfg.LinkTargets {
		if err := site.AddLinkTargets(dir, log); err != nil {
			return fmt.Errorf("unable to add link targets: %w", err)
		}
	}

	basename := ecfg.Basename
	if len(basename) == 0 {
		basename = s.Master
	}
	if ecfg.TransliterateName {
		basename = slug.Make(basename)
	}
	basename = config.CleanFileName(basename)

	out := filepath.Join(dir, basename+".epub")
	if _, err := os.Stat(out); err == nil {
		if !env.Overwrite {
			return fmt.Errorf("output file already exists: %s", out)
		}
		log.Warn("Overwriting existing file", zap.String("file", out))
		if err = os.Remove(out); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	entries := CollectReferences(s, ecfg)
	ignored := IgnoredFiles(basename, ecfg.ExcludeFiles)

	navMap, depth := BuildNavPoints(entries, ignored, ecfg.TOCDepth)

	items, err := BuildManifest(dir, ignored, log)
	if err != nil {
		return fmt.Errorf("unable to build manifest: %w", err)
	}
	spine := BuildSpine(entries, ignored)

	p := &Package{
		Dir:      dir,
		Basename: basename,
		Meta: Metadata{
			Title:      ecfg.Metadata.Title,
			Author:     ecfg.Metadata.Author,
			Language:   ecfg.Metadata.Language,
			Publisher:  ecfg.Metadata.Publisher,
			Rights:     ecfg.Metadata.Rights,
			Identifier: ecfg.Metadata.Identifier,
			Scheme:     ecfg.Metadata.Scheme,
			UID:        ecfg.Metadata.UID,
		},
		Items:  items,
		Spine:  spine,
		NavMap: navMap,
		Depth:  depth,
		FixZip: ecfg.FixZip,
	}
	if out, err = p.Generate(log); err != nil {
		return err
	}

	// Store result for debugging
	if env.Rpt != nil {
		env.Rpt.Store("result"+filepath.Ext(out), out)
	}

	log.Info("Package written", zap.String("file", out),
		zap.Int("files", len(items)), zap.Int("toc_depth", depth))
	return nil
}

// Check implements the check subcommand, verifying consistency of an already
// produced package.
func Check(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("check")

	path := cmd.Args().Get(0)
	if len(path) == 0 {
		return errors.New("no package file has been specified")
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	return Verify(path, log)
}
