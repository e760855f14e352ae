package utils

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"gopkg.in/gomail.v2"

	"crewlog/config"
)

type EmailData struct {
	Subject  string
	To       []string
	Template string
	Data     interface{}
	Year     int
}

// Embedded email templates
var emailTemplates = map[string]string{
	"project_invite": `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Subject}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { color: #2c3e50; border-bottom: 1px solid #eee; padding-bottom: 10px; }
        .content { margin: 20px 0; }
        .button { display: inline-block; padding: 10px 20px; background-color: #3498db; color: white; text-decoration: none; border-radius: 4px; }
        .footer { margin-top: 30px; font-size: 12px; color: #7f8c8d; text-align: center; }
    </style>
</head>
<body>
    <div class="header">
        <h2>You've been invited to a project</h2>
    </div>

    <div class="content">
        <p>Hello,</p>
        <p><strong>{{.InviterName}}</strong> invited you to join the project <strong>{{.ProjectName}}</strong> as {{.Role}}.</p>
        <p><a class="button" href="{{.InviteLink}}">Accept invitation</a></p>
        <p>This invitation expires on {{.ExpiresAt}}. If you weren't expecting it, you can ignore this email.</p>
    </div>

    <div class="footer">
        <p>© {{.Year}} Crewlog. All rights reserved.</p>
    </div>
</body>
</html>`,

	"team_invite": `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Subject}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { color: #2c3e50; border-bottom: 1px solid #eee; padding-bottom: 10px; }
        .content { margin: 20px 0; }
        .button { display: inline-block; padding: 10px 20px; background-color: #3498db; color: white; text-decoration: none; border-radius: 4px; }
        .footer { margin-top: 30px; font-size: 12px; color: #7f8c8d; text-align: center; }
    </style>
</head>
<body>
    <div class="header">
        <h2>You've been invited to a team</h2>
    </div>

    <div class="content">
        <p>Hello,</p>
        <p><strong>{{.InviterName}}</strong> invited you to join the team <strong>{{.TeamName}}</strong> as {{.Role}}.</p>
        <p><a class="button" href="{{.InviteLink}}">Accept invitation</a></p>
        <p>This invitation expires on {{.ExpiresAt}}. If you weren't expecting it, you can ignore this email.</p>
    </div>

    <div class="footer">
        <p>© {{.Year}} Crewlog. All rights reserved.</p>
    </div>
</body>
</html>`,

	"invite_reminder": `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Subject}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { color: #2c3e50; border-bottom: 1px solid #eee; padding-bottom: 10px; }
        .content { margin: 20px 0; }
        .button { display: inline-block; padding: 10px 20px; background-color: #e67e22; color: white; text-decoration: none; border-radius: 4px; }
        .footer { margin-top: 30px; font-size: 12px; color: #7f8c8d; text-align: center; }
    </style>
</head>
<body>
    <div class="header">
        <h2>Your invitation is about to expire</h2>
    </div>

    <div class="content">
        <p>Hello,</p>
        <p>Your invitation to <strong>{{.TargetName}}</strong> expires on {{.ExpiresAt}}.</p>
        <p><a class="button" href="{{.InviteLink}}">Accept invitation</a></p>
    </div>

    <div class="footer">
        <p>© {{.Year}} Crewlog. All rights reserved.</p>
    </div>
</body>
</html>`,

	"welcome_password": `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Subject}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { color: #2c3e50; border-bottom: 1px solid #eee; padding-bottom: 10px; }
        .content { margin: 20px 0; }
        .password { font-size: 18px; font-weight: bold; color: #3498db; margin: 20px 0; text-align: center; }
        .footer { margin-top: 30px; font-size: 12px; color: #7f8c8d; text-align: center; }
    </style>
</head>
<body>
    <div class="header">
        <h2>Welcome to Crewlog</h2>
    </div>

    <div class="content">
        <p>Hello,</p>
        <p>An account was created for you so you can join <strong>{{.ProjectName}}</strong>. Sign in with this temporary password and change it right away:</p>
        <div class="password">{{.Password}}</div>
    </div>

    <div class="footer">
        <p>© {{.Year}} Crewlog. All rights reserved.</p>
    </div>
</body>
</html>`,
}

// SendEmail renders an embedded template and delivers it over SMTP. When no
// SMTP host is configured (local development) it logs and returns nil so
// invite flows never fail on mail delivery.
func SendEmail(data EmailData) error {
	if config.AppConfig.SMTPHost == "" {
		LogEvent("email_skipped_no_smtp", map[string]interface{}{
			"template": data.Template,
			"subject":  data.Subject,
		})
		return nil
	}

	tmplContent, ok := emailTemplates[data.Template]
	if !ok {
		return fmt.Errorf("template '%s' not found", data.Template)
	}

	tmpl, err := template.New("email").Parse(tmplContent)
	if err != nil {
		return fmt.Errorf("error parsing template: %w", err)
	}

	if data.Year == 0 {
		data.Year = time.Now().Year()
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data.Data); err != nil {
		return fmt.Errorf("error executing template: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", fmt.Sprintf("%s <%s>", config.AppConfig.FromName, config.AppConfig.FromEmail))
	m.SetHeader("To", data.To...)
	m.SetHeader("Subject", data.Subject)
	m.SetBody("text/html", body.String())

	d := gomail.NewDialer(
		config.AppConfig.SMTPHost,
		config.AppConfig.SMTPPort,
		config.AppConfig.SMTPUsername,
		config.AppConfig.SMTPPassword,
	)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("error sending email: %w", err)
	}

	return nil
}

type inviteEmailData struct {
	Subject     string
	InviterName string
	ProjectName string
	TeamName    string
	TargetName  string
	Role        string
	InviteLink  string
	ExpiresAt   string
	Password    string
	Year        int
}

// SendProjectInviteEmail delivers a project invitation link to the invitee.
func SendProjectInviteEmail(email, inviterName, projectName, role, token string, expiresAt time.Time) error {
	subject := fmt.Sprintf("%s invited you to %s", inviterName, projectName)
	return SendEmail(EmailData{
		Subject:  subject,
		To:       []string{email},
		Template: "project_invite",
		Data: inviteEmailData{
			Subject:     subject,
			InviterName: inviterName,
			ProjectName: projectName,
			Role:        role,
			InviteLink:  fmt.Sprintf("%s/invites/project/%s", config.AppConfig.AppURL, token),
			ExpiresAt:   expiresAt.Format("Jan 2, 2006"),
			Year:        time.Now().Year(),
		},
	})
}

// SendTeamInviteEmail delivers a team invitation link to the invitee.
func SendTeamInviteEmail(email, inviterName, teamName, role, token string, expiresAt time.Time) error {
	subject := fmt.Sprintf("%s invited you to the %s team", inviterName, teamName)
	return SendEmail(EmailData{
		Subject:  subject,
		To:       []string{email},
		Template: "team_invite",
		Data: inviteEmailData{
			Subject:     subject,
			InviterName: inviterName,
			TeamName:    teamName,
			Role:        role,
			InviteLink:  fmt.Sprintf("%s/invites/team/%s", config.AppConfig.AppURL, token),
			ExpiresAt:   expiresAt.Format("Jan 2, 2006"),
			Year:        time.Now().Year(),
		},
	})
}

// SendInviteReminderEmail nudges an invitee whose invitation is close to
// expiring. targetName is the project or team name.
func SendInviteReminderEmail(email, targetName, link string, expiresAt time.Time) error {
	subject := fmt.Sprintf("Reminder: your invitation to %s expires soon", targetName)
	return SendEmail(EmailData{
		Subject:  subject,
		To:       []string{email},
		Template: "invite_reminder",
		Data: inviteEmailData{
			Subject:    subject,
			TargetName: targetName,
			InviteLink: link,
			ExpiresAt:  expiresAt.Format("Jan 2, 2006 15:04 MST"),
			Year:       time.Now().Year(),
		},
	})
}

// SendWelcomeEmail tells an auto-provisioned user about their new account.
func SendWelcomeEmail(email, projectName, password string) error {
	subject := "Welcome to Crewlog"
	return SendEmail(EmailData{
		Subject:  subject,
		To:       []string{email},
		Template: "welcome_password",
		Data: inviteEmailData{
			Subject:     subject,
			ProjectName: projectName,
			Password:    password,
			Year:        time.Now().Year(),
		},
	})
}
