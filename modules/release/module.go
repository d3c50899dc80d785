// Package release provides the 'release' runner: it assembles the
// distributable bundle from the frozen executable, the configuration
// template, and a generated instructions file.
package release

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"

	"github.com/vk/frostline/internal/ctxlog"
	"github.com/vk/frostline/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// InstructionsFileName is the name of the generated instructions file.
const InstructionsFileName = "LISEZ-MOI.txt"

// Instructions is the static end-user text shipped with every bundle. It is
// intentionally French-only and carries no templating.
const Instructions = `TABLEAU DE BORD KPI
===================

Installation
------------
1. Copiez ce dossier complet sur le poste de travail.
2. Verifiez que le fichier config.txt contient les bons parametres de
   connexion a la base de donnees (serveur, base, identifiants).
3. Double-cliquez sur l'executable pour lancer le tableau de bord.

Remarques
---------
- Aucune installation de Python n'est necessaire : l'application est
  autonome.
- En cas d'erreur de connexion, contactez l'equipe informatique avec le
  contenu du message affiche.
- Ne modifiez pas les autres fichiers du dossier.
`

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the release runner.
type Input struct {
	Executable string `hcl:"executable"`
	Config     string `hcl:"config"`
	Dest       string `hcl:"dest"`
}

// Deps is an empty struct because this runner does not use any resources.
type Deps struct{}

// OnRunRelease is the handler for the 'release' runner's on_run event. It
// rebuilds the destination directory from scratch and fills it with exactly
// three files: the executable, the config template, and the instructions.
func OnRunRelease(ctx context.Context, deps *Deps, input *Input) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx).With("runner", "release", "dest", input.Dest)
	logger.Info("Assembling release bundle")

	if err := os.RemoveAll(input.Dest); err != nil {
		return cty.NilVal, fmt.Errorf("failed to clear release directory: %w", err)
	}
	if err := os.MkdirAll(input.Dest, 0o755); err != nil {
		return cty.NilVal, fmt.Errorf("failed to create release directory: %w", err)
	}

	var total int64
	for _, src := range []string{input.Executable, input.Config} {
		n, err := copyFile(src, filepath.Join(input.Dest, filepath.Base(src)))
		if err != nil {
			return cty.NilVal, fmt.Errorf("failed to add %s to the bundle: %w", src, err)
		}
		total += n
	}

	instructionsPath := filepath.Join(input.Dest, InstructionsFileName)
	if err := os.WriteFile(instructionsPath, []byte(Instructions), 0o644); err != nil {
		return cty.NilVal, fmt.Errorf("failed to write %s: %w", InstructionsFileName, err)
	}
	total += int64(len(Instructions))

	entries, err := os.ReadDir(input.Dest)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to list release directory: %w", err)
	}

	logger.Info("Release bundle assembled", "files", len(entries), "total_bytes", total)
	return cty.ObjectVal(map[string]cty.Value{
		"path":        cty.StringVal(input.Dest),
		"files":       cty.NumberIntVal(int64(len(entries))),
		"total_bytes": cty.NumberIntVal(total),
	}), nil
}

// copyFile copies src to dst verbatim and reports the number of bytes
// written. The executable bit of the source is preserved.
func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		return n, err
	}
	return n, out.Close()
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("OnRunRelease", &registry.RegisteredRunner{
		NewInput:  func() any { return new(Input) },
		InputType: reflect.TypeOf(Input{}),
		NewDeps:   func() any { return new(Deps) },
		Fn:        OnRunRelease,
	})
}
