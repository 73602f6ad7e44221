package handlers

import (
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/imyashkale/mcserver/internal/models"
)

// StatusTemplateName is the name of the HTML status page template
const StatusTemplateName = "status.html"

//go:embed templates/*.html
var templateFS embed.FS

// StatusTemplate parses the embedded HTML templates for gin's HTML renderer
func StatusTemplate() *template.Template {
	return template.Must(template.New("").ParseFS(templateFS, "templates/*.html"))
}

// RenderText renders a status report as the plain text page players poll
func RenderText(r *models.ServerStatusReport) string {
	ip := r.Instance.PublicIP
	if ip == "" {
		ip = "not assigned yet"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Server address: %s\n", r.DNSName)
	fmt.Fprintf(&b, "Server IP: %s\n", ip)
	writeModLines(&b, r.Mods)
	fmt.Fprintf(&b, "EC2 state: %s (InService is good)\n", r.Instance.LifecycleState)
	fmt.Fprintf(&b, "MC state: %s (Pending: 0, Running: 1 is good and means the server is starting right now, which can take up to five minutes)\n", r.Service)
	if r.Ready() {
		b.WriteString("The server is up.\n")
	} else {
		b.WriteString("Refresh this page every 30 seconds until everything works.\n")
	}
	return b.String()
}

func writeModLines(b *strings.Builder, mods models.ModListing) {
	if mods.Empty() {
		b.WriteString("Mods used: none\n")
		return
	}
	if mods.Partitioned() {
		fmt.Fprintf(b, "Server mods: %s\n", modList(mods.Server))
		fmt.Fprintf(b, "Client mods: %s\n", modList(mods.Client))
	}
	if len(mods.Other) > 0 {
		fmt.Fprintf(b, "Mods used: %s\n", modList(mods.Other))
	}
}

func modList(files []models.ModFile) string {
	if len(files) == 0 {
		return "none"
	}
	return "[" + strings.Join(models.Names(files), ",") + "]"
}
