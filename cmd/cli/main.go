package main

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "auth":
		err = handleAuth(args)
	case "leave":
		err = handleLeave(args)
	case "team":
		err = handleTeam(args)
	case "admin":
		err = handleAdmin(args)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			fmt.Fprintln(os.Stderr, "  run `leavedesk auth login` first")
		}
		os.Exit(1)
	}
}

func client() *apiClient {
	return newAPIClient(getAPIURL(), loadToken())
}

func handleAuth(args []string) error {
	if len(args) < 1 {
		fmt.Println("Usage: leavedesk auth <login|logout|who>")
		return nil
	}

	switch args[0] {
	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		email := fs.String("email", "", "user email")
		password := fs.String("password", "", "password")
		fs.Parse(args[1:])

		if *email == "" || *password == "" {
			fs.PrintDefaults()
			return errors.New("email and password are required")
		}
		token, err := newAPIClient(getAPIURL(), "").login(*email, *password)
		if err != nil {
			return err
		}
		if err := saveToken(token); err != nil {
			return fmt.Errorf("save token: %w", err)
		}
		fmt.Printf("✓ Logged in as: %s\n", *email)
	case "logout":
		os.Remove(tokenFile())
		fmt.Println("✓ Logged out")
	case "who":
		var profile struct {
			UserID     int64  `json:"userId"`
			FirstName  string `json:"firstname"`
			Surname    string `json:"surname"`
			Email      string `json:"email"`
			Department string `json:"department"`
			Balance    int    `json:"annualLeaveBalance"`
			Role       struct {
				Name string `json:"name"`
			} `json:"role"`
		}
		if _, err := client().do(http.MethodGet, "/api/auth/me", nil, &profile); err != nil {
			return err
		}
		fmt.Printf("%s %s <%s> %s, %s, %d days remaining\n",
			profile.FirstName, profile.Surname, profile.Email, profile.Role.Name, profile.Department, profile.Balance)
	default:
		fmt.Printf("unknown auth command: %s\n", args[0])
	}
	return nil
}

func handleLeave(args []string) error {
	if len(args) < 1 {
		fmt.Println("Usage: leavedesk leave <request|cancel|list|remaining>")
		return nil
	}

	switch args[0] {
	case "request":
		fs := flag.NewFlagSet("request", flag.ExitOnError)
		start := fs.String("start", "", "first day (YYYY-MM-DD)")
		end := fs.String("end", "", "last day (YYYY-MM-DD)")
		leaveType := fs.String("type", "Annual Leave", "leave type")
		reason := fs.String("reason", "", "optional reason")
		fs.Parse(args[1:])

		body := map[string]any{"startDate": *start, "endDate": *end, "leaveType": *leaveType}
		if *reason != "" {
			body["reason"] = *reason
		}
		var lr leaveRow
		msg, err := client().do(http.MethodPost, "/api/leave-requests", body, &lr)
		if err != nil {
			return err
		}
		fmt.Printf("✓ %s: #%d %s → %s (%s)\n", msg, lr.ID, lr.StartDate, lr.EndDate, lr.Status)
	case "cancel":
		fs := flag.NewFlagSet("cancel", flag.ExitOnError)
		id := fs.Int64("id", 0, "leave request id")
		reason := fs.String("reason", "", "optional reason")
		fs.Parse(args[1:])
		return action(http.MethodDelete, "/api/leave-requests", *id, *reason)
	case "list":
		var rows []leaveRow
		if _, err := client().do(http.MethodGet, "/api/leave-requests/status", nil, &rows); err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTART\tEND\tTYPE\tSTATUS")
		for _, r := range rows {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", r.ID, r.StartDate, r.EndDate, r.LeaveType, r.Status)
		}
		w.Flush()
	case "remaining":
		var res map[string]int
		if _, err := client().do(http.MethodGet, "/api/leave-requests/remaining", nil, &res); err != nil {
			return err
		}
		fmt.Printf("%d days remaining\n", res["days remaining"])
	default:
		fmt.Printf("unknown leave command: %s\n", args[0])
	}
	return nil
}

func handleTeam(args []string) error {
	if len(args) < 1 {
		fmt.Println("Usage: leavedesk team <members|pending|approve|reject>")
		return nil
	}

	switch args[0] {
	case "members":
		var rows []struct {
			UserID    int64  `json:"userId"`
			FirstName string `json:"firstname"`
			Surname   string `json:"surname"`
			Balance   int    `json:"annualLeaveBalance"`
		}
		if _, err := client().do(http.MethodGet, "/api/leave-requests/managed-users", nil, &rows); err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tBALANCE")
		for _, r := range rows {
			fmt.Fprintf(w, "%d\t%s %s\t%d\n", r.UserID, r.FirstName, r.Surname, r.Balance)
		}
		w.Flush()
	case "pending":
		var rows []struct {
			RequestID  int64  `json:"request_id"`
			EmployeeID int64  `json:"employee_id"`
			Name       string `json:"name"`
			StartDate  string `json:"start_date"`
			EndDate    string `json:"end_date"`
		}
		if _, err := client().do(http.MethodGet, "/api/leave-requests/pending", nil, &rows); err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "REQUEST\tEMPLOYEE\tSTART\tEND")
		for _, r := range rows {
			fmt.Fprintf(w, "%d\t%s (%d)\t%s\t%s\n", r.RequestID, r.Name, r.EmployeeID, r.StartDate, r.EndDate)
		}
		w.Flush()
	case "approve", "reject":
		fs := flag.NewFlagSet(args[0], flag.ExitOnError)
		id := fs.Int64("id", 0, "leave request id")
		reason := fs.String("reason", "", "optional reason (reject only)")
		fs.Parse(args[1:])
		return action(http.MethodPatch, "/api/leave-requests/"+args[0], *id, *reason)
	default:
		fmt.Printf("unknown team command: %s\n", args[0])
	}
	return nil
}

func handleAdmin(args []string) error {
	if len(args) < 1 {
		fmt.Println("Usage: leavedesk admin <users|add-user|assign-manager|summary>")
		return nil
	}

	switch args[0] {
	case "users":
		var rows []struct {
			UserID     int64  `json:"userId"`
			FirstName  string `json:"firstname"`
			Surname    string `json:"surname"`
			Email      string `json:"email"`
			Department string `json:"department"`
			Role       string `json:"role"`
			Balance    int    `json:"annualLeaveBalance"`
		}
		if _, err := client().do(http.MethodGet, "/api/admin/all-users", nil, &rows); err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tEMAIL\tDEPARTMENT\tROLE\tBALANCE")
		for _, r := range rows {
			fmt.Fprintf(w, "%d\t%s %s\t%s\t%s\t%s\t%d\n", r.UserID, r.FirstName, r.Surname, r.Email, r.Department, r.Role, r.Balance)
		}
		w.Flush()
	case "add-user":
		fs := flag.NewFlagSet("add-user", flag.ExitOnError)
		first := fs.String("firstname", "", "first name")
		surname := fs.String("surname", "", "surname")
		email := fs.String("email", "", "email")
		password := fs.String("password", "", "initial password (8+ characters)")
		role := fs.Int("role", 1, "role id: 1 employee, 2 manager, 3 admin")
		department := fs.String("department", "", "department")
		fs.Parse(args[1:])

		msg, err := client().do(http.MethodPost, "/api/admin/add-user", map[string]any{
			"firstname":  *first,
			"surname":    *surname,
			"email":      *email,
			"password":   *password,
			"roleId":     *role,
			"department": *department,
		}, nil)
		if err != nil {
			return err
		}
		fmt.Printf("✓ %s: %s\n", msg, *email)
	case "assign-manager":
		fs := flag.NewFlagSet("assign-manager", flag.ExitOnError)
		employee := fs.Int64("employee", 0, "employee user id")
		manager := fs.Int64("manager", 0, "manager user id")
		start := fs.String("start", "", "first day of the reporting line (default today)")
		fs.Parse(args[1:])

		body := map[string]any{"employeeId": *employee, "managerId": *manager}
		if *start != "" {
			body["startDate"] = *start
		}
		msg, err := client().do(http.MethodPost, "/api/admin/assign-manager", body, nil)
		if err != nil {
			return err
		}
		fmt.Printf("✓ %s\n", msg)
	case "summary":
		var summary struct {
			DepartmentUsage       map[string]int `json:"departmentUsage"`
			TotalApprovedRequests int            `json:"totalApprovedRequests"`
		}
		if _, err := client().do(http.MethodGet, "/api/admin/reports/company-summary", nil, &summary); err != nil {
			return err
		}
		fmt.Printf("%d approved requests\n", summary.TotalApprovedRequests)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DEPARTMENT\tDAYS")
		for dept, days := range summary.DepartmentUsage {
			fmt.Fprintf(w, "%s\t%d\n", dept, days)
		}
		w.Flush()
	default:
		fmt.Printf("unknown admin command: %s\n", args[0])
	}
	return nil
}

type leaveRow struct {
	ID        int64  `json:"id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	LeaveType string `json:"leave_type"`
	Status    string `json:"status"`
}

func action(method, path string, id int64, reason string) error {
	if id <= 0 {
		return errors.New("-id is required")
	}
	body := map[string]any{"leaveRequestId": id}
	if reason != "" {
		body["reason"] = reason
	}
	var lr leaveRow
	msg, err := client().do(method, path, body, &lr)
	if err != nil {
		return err
	}
	fmt.Printf("✓ %s: #%d is %s\n", msg, lr.ID, lr.Status)
	return nil
}

// Helper functions
func getAPIURL() string {
	if url := os.Getenv("LEAVEDESK_API"); url != "" {
		return strings.TrimRight(url, "/")
	}
	return "http://localhost:8080"
}

func tokenFile() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".leavedesk", "token")
}

func saveToken(token string) error {
	if err := os.MkdirAll(filepath.Dir(tokenFile()), 0700); err != nil {
		return err
	}
	return os.WriteFile(tokenFile(), []byte(token), 0600)
}

func loadToken() string {
	data, _ := os.ReadFile(tokenFile())
	return strings.TrimSpace(string(data))
}

func printUsage() {
	fmt.Print(`LeaveDesk CLI

Usage:
  leavedesk <command> [options]

Commands:
  auth   Authentication (login, logout, who)
  leave  Your leave requests (request, cancel, list, remaining)
  team   Manager operations (members, pending, approve, reject)
  admin  Admin operations (users, add-user, assign-manager, summary)
  help   Show this help message

Environment Variables:
  LEAVEDESK_API    API endpoint (default: http://localhost:8080)

Examples:
  leavedesk auth login -email ada@example.com -password secret123
  leavedesk leave request -start 2025-03-10 -end 2025-03-12
  leavedesk team approve -id 4
  leavedesk admin assign-manager -employee 3 -manager 2
`)
}
