// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mailer builds and sends the analysis email with the chart attached.
package mailer

import (
	"fmt"
	"path/filepath"

	gomail "github.com/wneessen/go-mail"

	"github.com/covidreport/backend/internal/config"
	"github.com/covidreport/backend/internal/models"
)

// Subject returns the subject line for a country's analysis mail.
func Subject(country string) string {
	return fmt.Sprintf("%s - COVID Analysis", country)
}

// Body returns the fixed-template message body for a date range.
func Body(start, end string) string {
	return fmt.Sprintf("Hi,\n\n"+
		"Here is the image of the COVID Analysis between time-range %s to %s\n\n"+
		"Regards,\n"+
		"Anonymous", start, end)
}

// SMTPMailer sends analysis emails over SMTP with the chart PNG attached.
type SMTPMailer struct {
	cfg      config.SMTPConfig
	chartDir string
}

// NewSMTPMailer creates a mailer reading chart artifacts from chartDir.
func NewSMTPMailer(cfg config.SMTPConfig, chartDir string) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, chartDir: chartDir}
}

// BuildMessage assembles the mail for a task: fixed-template body, subject
// from the country, chart attached as image/png.
func (m *SMTPMailer) BuildMessage(task models.EmailTask) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(task.Sender); err != nil {
		return nil, fmt.Errorf("set sender %q: %w", task.Sender, err)
	}
	if err := msg.To(task.Recipient); err != nil {
		return nil, fmt.Errorf("set recipient %q: %w", task.Recipient, err)
	}

	msg.Subject(Subject(task.Country))
	msg.SetBodyString(gomail.TypeTextPlain, Body(task.StartDate, task.EndDate))
	msg.AttachFile(filepath.Join(m.chartDir, task.ChartFile),
		gomail.WithFileName(task.ChartFile),
		gomail.WithFileContentType(gomail.ContentType("image/png")),
	)

	return msg, nil
}

// Send delivers the email described by the task.
func (m *SMTPMailer) Send(task models.EmailTask) error {
	msg, err := m.BuildMessage(task)
	if err != nil {
		return err
	}

	client, err := gomail.NewClient(m.cfg.Host,
		gomail.WithPort(m.cfg.Port),
		gomail.WithSSL(),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(m.cfg.Username),
		gomail.WithPassword(m.cfg.Password),
	)
	if err != nil {
		return fmt.Errorf("create SMTP client: %w", err)
	}

	if err := client.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", task.Recipient, err)
	}

	return nil
}
