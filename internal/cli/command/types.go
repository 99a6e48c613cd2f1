package command

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	apperrors "codearena/pkg/errors"
)

// FieldType describes input type.
type FieldType int

const (
	FieldString FieldType = iota
	FieldInt
	FieldBool
	FieldFile
)

// Field defines a command input.
type Field struct {
	Name     string
	Aliases  []string
	Prompt   string
	Type     FieldType
	Required bool
}

// Command defines a REPL verb.
type Command struct {
	Verb    string
	Aliases []string
	Summary string
	// Session marks verbs that act on the current session.
	Session bool
	Fields  []Field
}

// Params holds parsed input params.
type Params map[string]string

func (p Params) Get(key string) string {
	return p[strings.ToLower(key)]
}

func (p Params) Set(key, value string) {
	p[strings.ToLower(key)] = value
}

func (p Params) Has(key string) bool {
	_, ok := p[strings.ToLower(key)]
	return ok
}

func (p Params) Canonicalize(fields []Field) {
	for _, field := range fields {
		for _, alias := range field.Aliases {
			aliasKey := strings.ToLower(alias)
			if value, ok := p[aliasKey]; ok {
				p[strings.ToLower(field.Name)] = value
				delete(p, aliasKey)
			}
		}
	}
}

// Validate checks typed fields that were given.
func (p Params) Validate(fields []Field) error {
	for _, field := range fields {
		value := p.Get(field.Name)
		if value == "" {
			continue
		}
		switch field.Type {
		case FieldInt:
			if _, err := ParseInt(value); err != nil {
				return apperrors.Wrapf(err, apperrors.InvalidFormat, "invalid %s: %v", field.Name, err).
					WithDetail("field", field.Name)
			}
		case FieldBool:
			if _, err := ParseBool(value); err != nil {
				return apperrors.Wrapf(err, apperrors.InvalidFormat, "invalid %s: %v", field.Name, err).
					WithDetail("field", field.Name)
			}
		}
	}
	return nil
}

func ParseInt(value string) (int, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 32)
	return int(n), err
}

func ParseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	return strconv.ParseBool(strings.TrimSpace(value))
}

func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file failed: %w", err)
	}
	return string(data), nil
}
