package service

import (
	"fmt"
	"html"
	"time"

	"github.com/iliyamo/credit-repair-auth/internal/model"
)

const teamSignature = "<p>Best regards,<br>Credit Repair Platform Team</p>"

func welcomeEmail(u model.User) (subject, body string) {
	subject = "Welcome to Credit Repair Platform"
	body = fmt.Sprintf(`<h2>Welcome to Credit Repair Platform!</h2>
<p>Hi %s,</p>
<p>Your account has been successfully created. You can now access our platform to manage your credit repair journey.</p>
<p>If you have any questions, please don't hesitate to contact our support team.</p>
%s`, html.EscapeString(u.FirstName), teamSignature)
	return subject, body
}

func resetEmail(u model.User, link string, ttl time.Duration) (subject, body string) {
	subject = "Password Reset Request"
	body = fmt.Sprintf(`<h2>Password Reset Request</h2>
<p>Hi %s,</p>
<p>You requested a password reset for your Credit Repair Platform account.</p>
<p>Click the link below to reset your password:</p>
<p><a href="%s">Reset Password</a></p>
<p>This link will expire in %d minutes.</p>
<p>If you didn't request this reset, please ignore this email.</p>
%s`, html.EscapeString(u.FirstName), html.EscapeString(link), int(ttl.Minutes()), teamSignature)
	return subject, body
}
