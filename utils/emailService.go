package utils

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"lms/config"
	"lms/database"
	"lms/models"
)

// Generic Send Email
func SendEmail(to []string, subject string, htmlBody string) error {
	smtpHost := "smtp.gmail.com"
	smtpPort := "587"

	from := config.AppConfig.EmailSender
	password := config.AppConfig.Password

	if from == "" || password == "" {
		log.Println("Email sender not configured, skipping email")
		return nil
	}

	// MIME basics
	msg := "MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\n"
	msg += fmt.Sprintf("From: %s\r\n", from)
	msg += fmt.Sprintf("To: %s\r\n", strings.Join(to, ","))
	msg += fmt.Sprintf("Subject: %s\r\n\r\n", subject)
	msg += htmlBody

	auth := smtp.PlainAuth("", from, password, smtpHost)

	if err := smtp.SendMail(smtpHost+":"+smtpPort, auth, from, to, []byte(msg)); err != nil {
		log.Printf("Error sending email: %v", err)
		return err
	}
	return nil
}

// SendCourseCompletionEmail notifies a user that they finished a course.
// Fired once, when the enrollment's completion timestamp is first set.
func SendCourseCompletionEmail(userID uint, courseTitle string) {
	if config.AppConfig == nil || config.AppConfig.EmailSender == "" {
		return
	}

	var user models.User
	if err := database.Database.Db.Where("id = ? AND is_deleted = ?", userID, false).First(&user).Error; err != nil {
		return
	}

	body := getEmailTemplate("Course Completed", fmt.Sprintf(`
		<h2>Congratulations, %s!</h2>
		<p>You have completed <strong>%s</strong>.</p>
		<p>Your certificate of completion and final score are available on your dashboard.</p>
	`, user.Name, courseTitle))

	if err := SendEmail([]string{user.Email}, "You completed "+courseTitle, body); err != nil {
		log.Printf("Failed to send completion email to user %d: %v", userID, err)
	}
}

// HTML wrapper shared by all outgoing mail
func getEmailTemplate(title string, bodyContent string) string {
	return fmt.Sprintf(`
	<!DOCTYPE html>
	<html>
	<head>
		<style>
			body { font-family: 'Helvetica Neue', Helvetica, Arial, sans-serif; background-color: #F6F6F6; margin: 0; padding: 0; }
			.container { max-width: 600px; margin: 40px auto; background: #FFFFFF; border-radius: 8px; overflow: hidden; box-shadow: 0 4px 15px rgba(0,0,0,0.05); }
			.header { background-color: #1A2B4C; padding: 30px; text-align: center; }
			.header h1 { color: #FFFFFF; margin: 0; font-size: 24px; letter-spacing: 1px; }
			.content { padding: 40px 30px; color: #1A2B4C; line-height: 1.6; }
			.footer { background-color: #F6F6F6; padding: 20px; text-align: center; font-size: 12px; color: #666666; border-top: 1px solid #E0E0E0; }
		</style>
	</head>
	<body>
		<div class="container">
			<div class="header">
				<h1>%s</h1>
			</div>
			<div class="content">%s</div>
			<div class="footer">This is an automated message, please do not reply.</div>
		</div>
	</body>
	</html>`, title, bodyContent)
}
