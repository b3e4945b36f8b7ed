package transport

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"path/filepath"

	"gopkg.in/gomail.v2"

	"mailqueue/internal/models"
)

// SMTP delivers jobs through an SMTP relay using gomail.
type SMTP struct {
	Host        string
	Port        int
	User        string
	Password    string
	From        string
	TemplateDir string
}

// Send renders the message and hands it to the SMTP relay. Rendering and
// addressing problems are permanent; dial/send problems are transient.
func (s *SMTP) Send(ctx context.Context, job *models.Job) error {
	if err := ctx.Err(); err != nil {
		return Transient(err)
	}

	htmlBody := job.HTMLBody
	if job.TemplateID != "" {
		rendered, err := s.render(job)
		if err != nil {
			return Permanent(err)
		}
		htmlBody = rendered
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", job.Recipients...)
	m.SetHeader("Subject", job.Subject)

	switch {
	case htmlBody != "" && job.Body != "":
		m.SetBody("text/plain", job.Body)
		m.AddAlternative("text/html", htmlBody)
	case htmlBody != "":
		m.SetBody("text/html", htmlBody)
	default:
		m.SetBody("text/plain", job.Body)
	}

	d := gomail.NewDialer(s.Host, s.Port, s.User, s.Password)
	if err := d.DialAndSend(m); err != nil {
		return Transient(fmt.Errorf("smtp send error: %w", err))
	}
	return nil
}

func (s *SMTP) render(job *models.Job) (string, error) {
	templatePath := filepath.Join(s.TemplateDir, job.TemplateID)

	tmpl, err := template.ParseFiles(templatePath)
	if err != nil {
		return "", fmt.Errorf("template parse error: %w", err)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, job.Variables); err != nil {
		return "", fmt.Errorf("template execution error: %w", err)
	}
	return body.String(), nil
}
