package mail

import (
	"bytes"
	htmltemplate "html/template"
	"text/template"
)

type verificationData struct {
	Name string
	Link string
}

var verificationText = template.Must(template.New("verification.txt").Parse(
	`Hi{{if .Name}} {{.Name}}{{end}},

Confirm your email address by opening the link below:

{{.Link}}

If you did not create an account you can ignore this message.
`))

var verificationHTML = htmltemplate.Must(htmltemplate.New("verification.html").Parse(
	`<!DOCTYPE html>
<html>
<body>
<p>Hi{{if .Name}} {{.Name}}{{end}},</p>
<p>Confirm your email address by clicking the link below:</p>
<p><a href="{{.Link}}">Verify email</a></p>
<p>If you did not create an account you can ignore this message.</p>
</body>
</html>
`))

// NewVerificationMessage renders the verification email sent to a new or
// unverified user.
func NewVerificationMessage(to, name, subject, link string) (Message, error) {
	data := verificationData{Name: name, Link: link}

	var text, html bytes.Buffer
	if err := verificationText.Execute(&text, data); err != nil {
		return Message{}, err
	}
	if err := verificationHTML.Execute(&html, data); err != nil {
		return Message{}, err
	}

	return Message{
		To:      to,
		Subject: subject,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
