// Package email sends answer notifications to askers via SMTP.
package email

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net/smtp"
	"strings"
)

var ErrNotConfigured = errors.New("email not configured")

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   sendFunc
}

func NewService(config Config) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendHTMLEmail sends a multipart message with a plain text fallback.
func (s *Service) SendHTMLEmail(to []string, subject, textBody, htmlBody string) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}
	if len(to) == 0 {
		return errors.New("email has no recipients")
	}
	return s.send(s.server, s.auth, s.config.From, to, s.buildMessage(to, subject, textBody, htmlBody))
}

func (s *Service) buildMessage(to []string, subject, textBody, htmlBody string) []byte {
	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", s.config.FromName), s.config.From)
	}

	boundary := "boundary-advisory"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", textBody)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)
	return msg.Bytes()
}

// AnswerNotice is what the asker learns when their question is answered.
type AnswerNotice struct {
	AppName        string
	RecipientName  string
	NamaPemohon    string
	NoRegistrasi   string
	TanggalJawaban string
	QuestionURL    string
}

// SendAnswerNotification tells the question owner an answer was recorded.
func (s *Service) SendAnswerNotification(to string, notice AnswerNotice) error {
	if notice.AppName == "" {
		notice.AppName = "Advisory System"
	}
	html, err := renderTemplate(answerTemplate, notice)
	if err != nil {
		return fmt.Errorf("render answer template: %w", err)
	}
	subject := fmt.Sprintf("Pertanyaan advisory sudah dijawab (%s)", notice.NoRegistrasi)
	text := fmt.Sprintf("Halo %s,\r\n\r\nPermohonan advisory atas nama %s sudah dijawab dengan nomor registrasi %s pada %s.",
		notice.RecipientName, notice.NamaPemohon, notice.NoRegistrasi, notice.TanggalJawaban)
	if notice.QuestionURL != "" {
		text += "\r\n\r\nLihat jawaban: " + notice.QuestionURL
	}
	return s.SendHTMLEmail([]string{to}, subject, text, html)
}

var answerTemplate = template.Must(template.New("answer").Parse(answerEmailTemplate))

func renderTemplate(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const answerEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.AppName}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #0066cc; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <p>Halo {{.RecipientName}},</p>

    <p>Permohonan advisory atas nama <strong>{{.NamaPemohon}}</strong> sudah dijawab.</p>

    <p>No. Registrasi: <strong>{{.NoRegistrasi}}</strong><br>
    Tanggal Jawaban: {{.TanggalJawaban}}</p>
    {{if .QuestionURL}}
    <p>
        <a href="{{.QuestionURL}}" class="button">Lihat Jawaban</a>
    </p>
    {{end}}
    <div class="footer">
        <p>Email ini dikirim otomatis oleh {{.AppName}}.</p>
    </div>
</body>
</html>`
