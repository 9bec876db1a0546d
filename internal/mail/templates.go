package mail

import (
	"bytes"
	"fmt"
	"html/template"
	texttemplate "text/template"
)

const (
	TemplateVerificationOTP = "verification_otp"
	TemplateWelcome         = "welcome"
)

var htmlTemplates = template.Must(template.New(TemplateVerificationOTP).Parse(`
<div style="font-family: Arial, sans-serif; background: #f6f8fa; padding: 40px;">
  <div style="max-width: 500px; margin: auto; background: #fff; border-radius: 8px;">
    <div style="padding: 32px;">
      <h2 style="color: #2d3748;">Hi {{.Name}},</h2>
      <p style="font-size: 16px; color: #4a5568;">Use this code to verify your email address:</p>
      <p style="font-size: 32px; letter-spacing: 8px; font-weight: bold; color: #2d3748;">{{.OTP}}</p>
      <p style="font-size: 14px; color: #4a5568;">The code expires in {{.ValidFor}}.</p>
      <p style="margin-top: 32px; font-size: 12px; color: #a0aec0;">If you did not request this, please ignore this email.</p>
    </div>
  </div>
</div>`))

var _ = template.Must(htmlTemplates.New(TemplateWelcome).Parse(`
<div style="font-family: Arial, sans-serif; background: #f6f8fa; padding: 40px;">
  <div style="max-width: 500px; margin: auto; background: #fff; border-radius: 8px;">
    <div style="padding: 32px;">
      <h2 style="color: #2d3748;">Welcome to {{.App}}, {{.Name}}!</h2>
      <p style="font-size: 16px; color: #4a5568;">Your email is verified and your account is ready. You can sign in now.</p>
    </div>
  </div>
</div>`))

var textTemplates = texttemplate.Must(texttemplate.New(TemplateVerificationOTP).Parse(
	"Hi {{.Name}},\n\nYour {{.App}} verification code is {{.OTP}}. It expires in {{.ValidFor}}.\n"))

var _ = texttemplate.Must(textTemplates.New(TemplateWelcome).Parse(
	"Welcome to {{.App}}, {{.Name}}!\n\nYour email is verified and your account is ready.\n"))

// OTPValidFor is the human-readable validity printed in the verification email
const OTPValidFor = "15 minutes"

type templateData struct {
	App      string
	Name     string
	OTP      int
	ValidFor string
}

func renderVerificationOTP(app, to, name string, otp int) (Message, error) {
	return render(TemplateVerificationOTP, "Verify your email", to, templateData{
		App: app, Name: name, OTP: otp, ValidFor: OTPValidFor,
	})
}

func renderWelcome(app, to, name string) (Message, error) {
	return render(TemplateWelcome, fmt.Sprintf("Welcome to %s", app), to, templateData{App: app, Name: name})
}

func render(name, subject, to string, data templateData) (Message, error) {
	var html, text bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&html, name, data); err != nil {
		return Message{}, fmt.Errorf("render %s html: %w", name, err)
	}
	if err := textTemplates.ExecuteTemplate(&text, name, data); err != nil {
		return Message{}, fmt.Errorf("render %s text: %w", name, err)
	}

	return Message{
		To:       to,
		Subject:  subject,
		HTML:     html.String(),
		Text:     text.String(),
		Template: name,
	}, nil
}
