package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/clarete/vine/ast"
	"github.com/clarete/vine/compiler"
	"github.com/clarete/vine/config"
	"github.com/clarete/vine/parser"
	"github.com/clarete/vine/vm"
)

func main() {
	var (
		dumpAST    = flag.Bool("ast", false, "print the parsed AST and exit")
		dumpCode   = flag.Bool("dis", false, "print the compiled bytecode disassembly and exit")
		dumpJSON   = flag.Bool("dump-json", false, "print the compiled bytecode as JSON and exit")
		configPath = flag.String("config", "", "path to a YAML file overriding compiler/gc/vm defaults")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatal("usage: vine [flags] <script.vn>")
	}
	srcPath := flag.Arg(0)

	src, err := os.ReadFile(srcPath)
	if err != nil {
		log.Fatalf("can't read %s: %s", srcPath, err)
	}

	cfg := config.New()
	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			log.Fatalf("can't read config %s: %s", *configPath, err)
		}
		if err := cfg.LoadYAML(data); err != nil {
			log.Fatalf("can't parse config %s: %s", *configPath, err)
		}
	}

	block, pdiags := parser.New(src).Parse()
	if len(pdiags) > 0 {
		for _, d := range pdiags {
			fmt.Fprintln(os.Stderr, d.Error())
		}
		os.Exit(1)
	}
	if *dumpAST {
		fmt.Println(ast.PrettyString(block))
		return
	}

	mod, cdiags := compiler.New().Compile(block, srcPath)
	if len(cdiags) > 0 {
		for _, d := range cdiags {
			fmt.Fprintln(os.Stderr, d.Error())
		}
		os.Exit(1)
	}
	if *dumpCode {
		fmt.Println(mod.Main.PrettyString())
		return
	}
	if *dumpJSON {
		data, err := mod.Main.DebugJSON()
		if err != nil {
			log.Fatalf("can't dump bytecode: %s", err)
		}
		os.Stdout.Write(data)
		fmt.Println()
		return
	}

	state := vm.NewState(cfg)
	closure := state.LoadProto(mod, srcPath)
	if _, err := state.Call(closure, nil, 0); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
