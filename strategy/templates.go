package strategy

import (
	"embed"
	"fmt"
)

// Runner templates wrap the submitted code with the line-protocol main loop
// for each language. The marker %USER_CODE% is replaced with the submission;
// the user implements a strategy(...) entry point.
//
//go:embed templates/*
var templateFS embed.FS

func runnerTemplate(lang Language) (string, error) {
	var name string
	switch lang {
	case Python:
		name = "templates/python_runner.py"
	case JavaScript:
		name = "templates/js_runner.js"
	case C:
		name = "templates/c_runner.c"
	case CPP:
		name = "templates/cpp_runner.cpp"
	default:
		return "", fmt.Errorf("no runner template for language %v", lang)
	}

	data, err := templateFS.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("load runner template: %w", err)
	}
	return string(data), nil
}
