package message

import (
	"fmt"
	"strings"
	"text/template"
)

// Data is what a confirmation template can reference.
type Data struct {
	Code    string
	Address string
}

// Template renders the subject and body of a confirmation message.
type Template struct {
	subject string
	body    *template.Template
}

// New parses bodyTemplate. A body without any action gets the code appended,
// so "Your code: " works as well as "Your code: {{.Code}}".
func New(subject, bodyTemplate string) (*Template, error) {
	if !strings.Contains(bodyTemplate, "{{") {
		bodyTemplate += "{{.Code}}"
	}
	body, err := template.New("body").Option("missingkey=error").Parse(bodyTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse message template: %w", err)
	}
	return &Template{subject: subject, body: body}, nil
}

// Render returns the subject and body for code sent to address.
func (t *Template) Render(address, code string) (subject, body string, err error) {
	var sb strings.Builder
	if err := t.body.Execute(&sb, Data{Code: code, Address: address}); err != nil {
		return "", "", fmt.Errorf("render message: %w", err)
	}
	return t.subject, sb.String(), nil
}
