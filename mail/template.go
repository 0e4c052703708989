package mail

import (
	"bytes"
	"html/template"
	"strconv"
	"time"
)

var verificationTemplate = template.Must(template.New("verification").Parse(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8" />
	<title>Verify Your Email</title>
</head>
<body style="margin:0; padding:20px; font-family: Arial, sans-serif; background-color:#ffffff; color:#0C101D;">
	<table width="100%" border="0" cellspacing="0" cellpadding="0" bgcolor="#ffffff">
		<tr><td align="center">
			<table width="600" border="0" cellspacing="0" cellpadding="0" bgcolor="#fafaff" style="border-radius:8px; padding:30px;">
				<tr><td align="center" style="font-size:24px; font-weight:bold; padding-bottom:20px;">
					Welcome
				</td></tr>
				<tr><td style="font-size:16px; line-height:24px; padding-bottom:20px;">
					Hi {{.Username}},<br />
					Thanks for signing up! To complete your registration, please verify your
					email address by clicking the button below.
				</td></tr>
				<tr><td align="center" style="padding-bottom:20px;">
					<a href="{{.Link}}" style="display:inline-block; padding:12px 24px; background-color:#0C101D; color:#FAFAFF; text-decoration:none; font-weight:bold; border-radius:6px;">
						Verify Email
					</a>
				</td></tr>
				<tr><td style="font-size:14px; line-height:20px; padding-bottom:20px;">
					Or manually visit this link<br />
					<a href="{{.Link}}" style="word-break:break-all;">{{.Link}}</a>
				</td></tr>
				<tr><td align="center" style="font-size:12px; color:#7f8491; padding-top:20px;">
					This link will expire in {{.Expiry}} for your security.
				</td></tr>
			</table>
		</td></tr>
	</table>
</body>
</html>
`))

// VerificationBody renders the HTML body of a verification email. The
// username is escaped; link must already be a complete URL.
func VerificationBody(username, link string, ttl time.Duration) (string, error) {
	var buf bytes.Buffer
	err := verificationTemplate.Execute(&buf, struct {
		Username string
		Link     template.URL
		Expiry   string
	}{
		Username: username,
		Link:     template.URL(link),
		Expiry:   humanDuration(ttl),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute:
		return plural(int(d/time.Minute), "minute")
	default:
		return plural(int(d/time.Second), "second")
	}
}

func plural(n int, unit string) string {
	s := strconv.Itoa(n) + " " + unit
	if n != 1 {
		s += "s"
	}
	return s
}
