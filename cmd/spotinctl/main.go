// Command spotinctl drives the attendance client from a terminal: sign in,
// scan a QR payload, verify the geofence and mark attendance, then inspect
// history and schedule. The device camera, GPS and biometric prompt are
// replaced by command arguments, configured coordinates and a terminal
// confirmation.
package main

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/spotin-app/spotin-go/api"
	"github.com/spotin-app/spotin-go/attendance"
	"github.com/spotin-app/spotin-go/gate"
	"github.com/spotin-app/spotin-go/geo"
	"github.com/spotin-app/spotin-go/internal/config"
	"github.com/spotin-app/spotin-go/securefile"
	"github.com/spotin-app/spotin-go/session"
)

const usage = `usage: spotinctl <command> [args]

commands:
  login <email> <password>   sign in and persist the session
  logout                     sign out and clear the persisted session
  whoami                     show the signed-in user
  qr                         mint a QR token from the stub backend
  mark <qr-payload>          run the eligibility gate and mark attendance
  history                    show attendance history and statistics
  schedule                   show today's schedule
`

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err := run(os.Args[1], os.Args[2:]); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

func run(command string, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, client, err := wire(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch command {
	case "login":
		if len(args) != 2 {
			return fmt.Errorf("login needs <email> <password>")
		}
		sess, err := store.SignIn(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("signed in as %s <%s>\n", sess.User.Name, sess.User.Email)
		return nil

	case "logout":
		store.SignOut(ctx)
		fmt.Println("signed out")
		return nil

	case "whoami":
		sess, err := store.Bootstrap(ctx)
		if err != nil {
			return err
		}
		if sess == nil {
			fmt.Println("not signed in")
			return nil
		}
		fmt.Printf("%s <%s> (%s)\n", sess.User.Name, sess.User.Email, sess.User.Role)
		return nil

	case "qr":
		return mintQRToken(ctx, cfg.APIBaseURL)

	case "mark":
		if len(args) != 1 {
			return fmt.Errorf("mark needs <qr-payload>")
		}
		return mark(ctx, cfg, store, client, args[0])

	case "history":
		return history(ctx, store, client)

	case "schedule":
		return schedule(ctx, store, client)

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

// wire builds the keychain, session store and api client, resolving the
// store/client construction cycle through a late-bound token source.
func wire(cfg *config.Config) (*session.Store, *api.Client, error) {
	key := cfg.KeychainKey
	if key == nil {
		log.Warn().Msg("SPOTIN_KEYCHAIN_KEY not set, using an insecure development key")
		derived := sha256.Sum256([]byte("spotin-dev-keychain"))
		key = derived[:]
	}

	keychain, err := securefile.New(cfg.KeychainPath, key)
	if err != nil {
		return nil, nil, err
	}

	var store *session.Store
	client, err := api.NewClient(cfg.APIBaseURL,
		api.TokenSourceFunc(func() string { return store.Token() }),
		api.WithUnauthorizedHook(func() { store.HandleUnauthorized() }),
		api.WithLogger(log.Logger),
	)
	if err != nil {
		return nil, nil, err
	}

	store, err = session.NewStore(keychain, client, session.WithLogger(log.Logger))
	if err != nil {
		return nil, nil, err
	}
	store.OnInvalidated(func() {
		fmt.Fprintln(os.Stderr, "session expired, please sign in again")
	})
	return store, client, nil
}

func mark(ctx context.Context, cfg *config.Config, store *session.Store, client *api.Client, payload string) error {
	if sess, err := store.Bootstrap(ctx); err != nil {
		return err
	} else if sess == nil {
		return fmt.Errorf("not signed in")
	}

	g, err := gate.New(cfg.Target,
		staticLocations{coord: cfg.DeviceCoordinate},
		client,
		gate.WithBiometrics(terminalPrompter{}),
		gate.WithLogger(log.Logger),
	)
	if err != nil {
		return err
	}

	if err := g.ScanQR(payload); err != nil {
		return err
	}

	within, distance, err := g.VerifyLocation(ctx)
	if err != nil {
		return err
	}
	if !within {
		return fmt.Errorf("you are %.0fm away from the allowed area", distance)
	}
	fmt.Printf("location verified, %.0fm from the centre\n", distance)

	record, err := g.Submit(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("attendance marked: %s (%s)\n", attendance.StatusText(record.Result, record.Status), record.DateKey)
	return nil
}

func history(ctx context.Context, store *session.Store, client *api.Client) error {
	if sess, err := store.Bootstrap(ctx); err != nil {
		return err
	} else if sess == nil {
		return fmt.Errorf("not signed in")
	}

	records, err := client.MyAttendance(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no attendance records yet")
		return nil
	}

	for _, r := range records {
		fmt.Printf("%s  %-8s  %.0fm\n", r.DateKey, attendance.StatusText(r.Result, r.Status), r.DistanceMeters)
	}

	stats := attendance.Monthly(records)
	fmt.Printf("\nattendance %d%%, punctuality %d%% (%d present, %d late, %d absent)\n",
		stats.AttendancePercentage, stats.PunctualityPercentage,
		stats.PresentDays, stats.LateDays, stats.AbsentDays)

	for _, badge := range attendance.Achievements(records) {
		fmt.Printf("achievement: %s (%s)\n", badge.Title, badge.Subtitle)
	}
	return nil
}

func schedule(ctx context.Context, store *session.Store, client *api.Client) error {
	if sess, err := store.Bootstrap(ctx); err != nil {
		return err
	} else if sess == nil {
		return fmt.Errorf("not signed in")
	}

	sched, err := client.MySchedule(ctx)
	if err != nil {
		return err
	}
	if sched == nil {
		fmt.Println("no schedule today")
		return nil
	}
	fmt.Printf("today %s - %s (late after %d minutes)\n", sched.StartTime, sched.EndTime, sched.LateAfterMinutes)
	return nil
}

func mintQRToken(ctx context.Context, baseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(baseURL, "/")+"/api/admin/qr/new", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var out struct {
		QRToken string `json:"qrToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}
	fmt.Println(out.QRToken)
	return nil
}

// staticLocations reports the configured coordinates as the device position.
type staticLocations struct {
	coord geo.Coordinate
}

func (l staticLocations) CurrentCoordinate(context.Context) (geo.Coordinate, error) {
	return l.coord, nil
}

func (l staticLocations) LastKnownCoordinate(context.Context) (geo.Coordinate, time.Time, error) {
	return geo.Coordinate{}, time.Time{}, gate.ErrNoCachedFix
}

// terminalPrompter stands in for the biometric dialog.
type terminalPrompter struct{}

func (terminalPrompter) Confirm(_ context.Context, message string) (bool, error) {
	fmt.Printf("%s [y/N]: ", message)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
