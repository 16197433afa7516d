package smtp

import (
	"context"

	"github.com/api-yamdb/internal/pkg/message"
)

// CodeNotifier emails confirmation codes through a Mailer.
type CodeNotifier struct {
	mailer   Mailer
	template *message.Template
}

func NewCodeNotifier(m Mailer, tpl *message.Template) *CodeNotifier {
	return &CodeNotifier{mailer: m, template: tpl}
}

func (n *CodeNotifier) Send(ctx context.Context, address, code string) error {
	subject, body, err := n.template.Render(address, code)
	if err != nil {
		return err
	}
	return n.mailer.SendEmail(ctx, address, subject, body)
}
