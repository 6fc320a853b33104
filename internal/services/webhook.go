package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/taskgrid-dev/taskgrid/internal/models"
)

type DiscordWebhookField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type DiscordEmbed struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Color       int                   `json:"color"`
	Fields      []DiscordWebhookField `json:"fields"`
	Footer      *DiscordFooter        `json:"footer,omitempty"`
	Timestamp   string                `json:"timestamp"`
}

type DiscordFooter struct {
	Text string `json:"text"`
}

type DiscordWebhookRequest struct {
	Username string         `json:"username"`
	Embeds   []DiscordEmbed `json:"embeds"`
}

type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type SlackAttachment struct {
	Color     string       `json:"color"`
	Title     string       `json:"title"`
	Text      string       `json:"text"`
	Fields    []SlackField `json:"fields"`
	Footer    string       `json:"footer"`
	Timestamp int64        `json:"ts"`
}

type SlackWebhookRequest struct {
	Username    string            `json:"username"`
	Text        string            `json:"text"`
	Attachments []SlackAttachment `json:"attachments"`
}

const (
	ColorBlue  = 255      // #0000FF - Task created
	ColorGreen = 65280    // #00FF00 - Task completed
	ColorRed   = 16711680 // #FF0000 - Urgent task

	Username = "TaskGrid"
)

func SendTaskCreatedNotification(project models.Project, task models.Task, creatorName string) error {
	if project.DiscordWebhook != "" {
		if err := sendDiscordTaskCreated(project.DiscordWebhook, project, task, creatorName); err != nil {
			return fmt.Errorf("discord: %w", err)
		}
	}

	if project.SlackWebhook != "" {
		if err := sendSlackTaskCreated(project.SlackWebhook, project, task, creatorName); err != nil {
			return fmt.Errorf("slack: %w", err)
		}
	}

	return nil
}

func SendTaskCompletedNotification(project models.Project, task models.Task) error {
	if project.DiscordWebhook != "" {
		if err := sendDiscordTaskCompleted(project.DiscordWebhook, project, task); err != nil {
			return fmt.Errorf("discord: %w", err)
		}
	}

	if project.SlackWebhook != "" {
		if err := sendSlackTaskCompleted(project.SlackWebhook, project, task); err != nil {
			return fmt.Errorf("slack: %w", err)
		}
	}

	return nil
}

func dueDateLabel(task models.Task) string {
	if task.DueDate == nil {
		return "None"
	}

	return task.DueDate.Format("2006-01-02")
}

func sendDiscordTaskCreated(webhookURL string, project models.Project, task models.Task, creatorName string) error {
	color := ColorBlue

	if task.Priority == models.TaskPriorityUrgent {
		color = ColorRed
	}

	payload := DiscordWebhookRequest{
		Username: Username,
		Embeds: []DiscordEmbed{
			{
				Title:       "New task created",
				Description: task.Title,
				Color:       color,
				Fields: []DiscordWebhookField{
					{Name: "Priority", Value: task.Priority, Inline: true},
					{Name: "Status", Value: task.Status, Inline: true},
					{Name: "Due", Value: dueDateLabel(task), Inline: true},
					{Name: "Created by", Value: creatorName, Inline: true},
				},
				Footer: &DiscordFooter{
					Text: fmt.Sprintf("Project: %s", project.Name),
				},
				Timestamp: time.Now().Format(time.RFC3339),
			},
		},
	}

	return sendDiscordWebhook(webhookURL, payload)
}

func sendDiscordTaskCompleted(webhookURL string, project models.Project, task models.Task) error {
	payload := DiscordWebhookRequest{
		Username: Username,
		Embeds: []DiscordEmbed{
			{
				Title:       "Task completed",
				Description: task.Title,
				Color:       ColorGreen,
				Fields: []DiscordWebhookField{
					{Name: "Priority", Value: task.Priority, Inline: true},
				},
				Footer: &DiscordFooter{
					Text: fmt.Sprintf("Project: %s", project.Name),
				},
				Timestamp: time.Now().Format(time.RFC3339),
			},
		},
	}

	return sendDiscordWebhook(webhookURL, payload)
}

func sendSlackTaskCreated(webhookURL string, project models.Project, task models.Task, creatorName string) error {
	color := "#0000FF"

	if task.Priority == models.TaskPriorityUrgent {
		color = "#FF0000"
	}

	payload := SlackWebhookRequest{
		Username: Username,
		Text:     fmt.Sprintf("New task in *%s*", project.Name),
		Attachments: []SlackAttachment{
			{
				Color: color,
				Title: task.Title,
				Text:  task.Description,
				Fields: []SlackField{
					{Title: "Priority", Value: task.Priority, Short: true},
					{Title: "Due", Value: dueDateLabel(task), Short: true},
					{Title: "Created by", Value: creatorName, Short: true},
				},
				Footer:    "TaskGrid",
				Timestamp: time.Now().Unix(),
			},
		},
	}

	return sendSlackWebhook(webhookURL, payload)
}

func sendSlackTaskCompleted(webhookURL string, project models.Project, task models.Task) error {
	payload := SlackWebhookRequest{
		Username: Username,
		Text:     fmt.Sprintf("Task completed in *%s*", project.Name),
		Attachments: []SlackAttachment{
			{
				Color:     "#00FF00",
				Title:     task.Title,
				Footer:    "TaskGrid",
				Timestamp: time.Now().Unix(),
			},
		},
	}

	return sendSlackWebhook(webhookURL, payload)
}

func sendDiscordWebhook(webhookURL string, payload DiscordWebhookRequest) error {
	body, err := json.Marshal(payload)

	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	return postWebhook(webhookURL, body)
}

func sendSlackWebhook(webhookURL string, payload SlackWebhookRequest) error {
	body, err := json.Marshal(payload)

	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	return postWebhook(webhookURL, body)
}

func postWebhook(webhookURL string, body []byte) error {
	client := &http.Client{Timeout: 10 * time.Second}

	resp, err := client.Post(webhookURL, "application/json", bytes.NewReader(body))

	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// IsWebhookURL is a light sanity check for webhook configuration.
func IsWebhookURL(raw string) bool {
	return raw == "" || strings.HasPrefix(raw, "https://") || strings.HasPrefix(raw, "http://")
}
