// Command pep517run-host is the backend host: it runs inside the process
// spawned by a Frontend, loads the requested backend adapter, and serves
// the line-delimited JSON protocol on stdin/stdout/stderr.
package main

import (
	"log"
	"os"
	"strings"

	"pep517run/internal/hostproc"
	_ "pep517run/internal/hostproc/testbackend"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("pep517run-host: ")

	if len(os.Args) != 3 {
		log.Fatalf("usage: %s <reuse:true|false> <backend-spec>", os.Args[0])
	}

	reuse := os.Args[1] == "true"
	module, object := splitBackendSpec(os.Args[2])

	backend, err := hostproc.Load(module, object)
	if err != nil {
		log.Fatalf("failed to start backend: %v", err)
	}

	if err := hostproc.Run(reuse, backend, os.Stdin, os.Stdout, os.Stderr); err != nil {
		log.Fatalf("command loop exited with error: %v", err)
	}
}

// splitBackendSpec mirrors internal/pyproject's trailing-colon tolerance:
// the host receives the same "module:object[:]" text the frontend derived
// from pyproject.toml.
func splitBackendSpec(spec string) (module, object string) {
	spec = strings.TrimSuffix(spec, ":")
	module, object, found := strings.Cut(spec, ":")
	if !found {
		return spec, ""
	}
	return module, object
}
