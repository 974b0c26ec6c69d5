// Command ilclone clones types between bytecode modules.
//
// Usage:
//
//	ilclone clone -recipe weave.yaml [-out App.yaml]
//	ilclone check -module Mixins -type Mixins.Counter
//	ilclone dump  -module App
//	ilclone run   -module App -type App.Program -method Main [args...]
//
// Modules are looked up as <Name>.yaml in the directories of ILCLONE_PATH.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"ilclone/internal/clone"
	"ilclone/internal/il"
	"ilclone/internal/il/ilasm"
	"ilclone/internal/recipe"
	"ilclone/internal/vm"
)

const usage = "usage: ilclone clone|check|dump|run [flags]"

func main() {
	log.SetFlags(0)
	log.SetPrefix("ilclone: ")

	if len(os.Args) < 2 {
		log.Fatal(usage)
	}

	_ = godotenv.Load()

	cfg, err := loadConfig(environ)
	if err != nil {
		log.Fatal(err)
	}

	args := os.Args[2:]

	switch os.Args[1] {
	case "clone":
		err = runClone(cfg, args)
	case "check":
		err = runCheck(cfg, args)
	case "dump":
		err = runDump(cfg, args)
	case "run":
		err = runRun(cfg, args)
	default:
		log.Fatalf("unknown command %q\n%s", os.Args[1], usage)
	}

	if err != nil {
		log.Fatal(err)
	}
}

func runClone(cfg Config, args []string) error {
	fs := flag.NewFlagSet("clone", flag.ExitOnError)
	path := fs.String("recipe", "", "recipe file (.yaml or .toml)")
	out := fs.String("out", "", "output module file, overrides the recipe")
	_ = fs.Parse(args)

	if *path == "" {
		return fmt.Errorf("-recipe is required")
	}

	r, err := recipe.Load(*path)
	if err != nil {
		return err
	}

	// Module names in a recipe are resolved next to the recipe first.
	resolver, err := cfg.resolver(filepath.Dir(*path))
	if err != nil {
		return err
	}

	result, err := r.Apply(resolver)
	if err != nil {
		return err
	}

	for _, t := range result.Types {
		log.Printf("cloned %s into %s", r.Source.Type, t.FullName())
	}

	if result.Wrapped != nil {
		log.Printf("wrapped %s", result.Wrapped.FullName())
	}

	target := r.Output
	if *out != "" {
		target = *out
	}

	if err := ilasm.WriteFile(target, result.Module); err != nil {
		return err
	}

	log.Printf("wrote module %s to %s", result.Module.Name, target)

	return nil
}

func runCheck(cfg Config, args []string) error {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	module := fs.String("module", "", "module holding the source type")
	name := fs.String("type", "", "full name of the source type")
	_ = fs.Parse(args)

	resolver, err := cfg.resolver()
	if err != nil {
		return err
	}

	source, err := findType(resolver, *module, *name)
	if err != nil {
		return err
	}

	d := clone.Check(source)
	for _, item := range d.Errors {
		log.Print(item)
	}

	for _, item := range d.Warnings {
		log.Print(item)
	}

	if !d.IsValid() {
		return fmt.Errorf("%s cannot be cloned", source.FullName())
	}

	log.Printf("%s can be cloned", source.FullName())

	return nil
}

func runDump(cfg Config, args []string) error {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	module := fs.String("module", "", "module to print")
	_ = fs.Parse(args)

	resolver, err := cfg.resolver()
	if err != nil {
		return err
	}

	m, err := resolver.Resolve(*module)
	if err != nil {
		return err
	}

	data, err := ilasm.Encode(m)
	if err != nil {
		return err
	}

	_, err = os.Stdout.Write(data)

	return err
}

func runRun(cfg Config, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	module := fs.String("module", "", "module holding the method")
	name := fs.String("type", "", "full name of the declaring type")
	method := fs.String("method", "", "static method to call")
	steps := fs.Int("max-steps", vm.DefaultMaxSteps, "instruction budget")
	_ = fs.Parse(args)

	resolver, err := cfg.resolver()
	if err != nil {
		return err
	}

	t, err := findType(resolver, *module, *name)
	if err != nil {
		return err
	}

	m := t.Method(*method)
	if m == nil || !m.IsStatic() {
		return fmt.Errorf("%s has no static method %s", t.FullName(), *method)
	}

	modules, err := closure(resolver, t.Module)
	if err != nil {
		return err
	}

	machine := vm.New(modules...)
	machine.MaxSteps = *steps

	v, err := machine.Call(m, parseArgs(fs.Args())...)
	if err != nil {
		return err
	}

	fmt.Println(v)

	return nil
}

func findType(resolver *ilasm.Resolver, module, name string) (*il.TypeDef, error) {
	if module == "" || name == "" {
		return nil, fmt.Errorf("-module and -type are required")
	}

	m, err := resolver.Resolve(module)
	if err != nil {
		return nil, err
	}

	t := m.Type(name)
	if t == nil {
		return nil, fmt.Errorf("module %s has no type %s", module, name)
	}

	return t, nil
}

// closure returns root and every module it references, directly or not.
func closure(resolver *ilasm.Resolver, root *il.Module) ([]*il.Module, error) {
	seen := map[string]bool{root.Name: true}
	modules := []*il.Module{root}

	for i := 0; i < len(modules); i++ {
		for _, ref := range modules[i].References {
			if seen[ref] {
				continue
			}

			seen[ref] = true

			m, err := resolver.Resolve(ref)
			if err != nil {
				return nil, err
			}

			modules = append(modules, m)
		}
	}

	return modules, nil
}

// parseArgs reads integers as int32 and passes everything else as a string.
func parseArgs(args []string) []vm.Value {
	values := make([]vm.Value, len(args))

	for i, a := range args {
		if n, err := strconv.ParseInt(a, 10, 32); err == nil {
			values[i] = int32(n)
			continue
		}

		values[i] = a
	}

	return values
}
