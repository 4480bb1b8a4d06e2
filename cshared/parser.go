// Command cshared exposes the Logica parser over a C ABI for
// embedding.  Build with:
//
//	go build -buildmode=c-shared -o liblogica_parser.so ./cshared
//
// Both returned strings are allocated with C malloc and must be freed
// by the caller via Free; exactly one of them is null.
package main

/*
#include <stdlib.h>
*/
import "C"

import (
	"strings"
	"unsafe"

	"github.com/logica-lang/logica/compiler"
	"github.com/logica-lang/logica/compiler/ast"
	"github.com/logica-lang/logica/compiler/parser"
	"github.com/logica-lang/logica/compiler/rewrite"
)

//export ParseRulesJSON
func ParseRulesJSON(programText, fileName, logicapath *C.char,
	full C.int) (json *C.char, err *C.char) {
	var roots []string
	if path := C.GoString(logicapath); path != "" {
		roots = strings.Split(path, ":")
	}
	program := C.GoString(programText)
	name := C.GoString(fileName)
	var document []byte
	var parseErr error
	if full == 0 {
		document, parseErr = shallowParse(program, name)
	} else {
		document, parseErr = compiler.ParseToJSON(program, name,
			compiler.Options{ImportRoots: roots})
	}
	if parseErr != nil {
		return nil, C.CString(parseErr.Error())
	}
	return C.CString(string(document)), nil
}

// shallowParse parses a single file with rewrites applied but without
// resolving imports.
func shallowParse(program, name string) ([]byte, error) {
	source, err := parser.RemoveComments(name, program)
	if err != nil {
		return nil, err
	}
	file, err := parser.ParseStatements(source)
	if err != nil {
		return nil, err
	}
	file.Rules, err = rewrite.All(file.Rules)
	if err != nil {
		return nil, err
	}
	return ast.MarshalFile(file)
}

//export Free
func Free(ptr *C.char) {
	C.free(unsafe.Pointer(ptr))
}

func main() {}
