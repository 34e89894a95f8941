package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pharmfinder/m/domain"
	"pharmfinder/m/internal/api"
	"pharmfinder/m/internal/config"
	"pharmfinder/m/internal/currency"
	"pharmfinder/m/internal/geo"
	"pharmfinder/m/internal/logging"
	"pharmfinder/m/internal/ranking"
	"pharmfinder/m/internal/search"
	"pharmfinder/m/internal/seed"
)

// cliDevice is the device scope used by command line searches.
const cliDevice = "cli"

var (
	cfg    config.Config
	logger *zap.Logger

	findMedication  int64
	findMedications []int64
	findLat         float64
	findLon         float64
	findSort        string
	findInsurance   string
	listLimit       int
)

var rootCmd = &cobra.Command{
	Use:   "pharmfinder",
	Short: "PharmFinder application server and tools",
	Long: `PharmFinder helps patients find pharmacies stocking their medications,
reserve them and scan prescriptions. It sits in front of the pharmacy
REST backend configured with BACKEND_URL.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		var err error
		logger, err = logging.New(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		for _, w := range cfg.Warnings {
			logger.Warn(w)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

var medicationsCmd = &cobra.Command{
	Use:   "medications [query]",
	Short: "List the catalog, or autocomplete a query",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMedications,
}

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Find pharmacies holding one or several medications",
	Long: `Find pharmacies holding a medication (--medication) or several
(--medications 1,2,3). With --lat/--lon the position is cached for 24h and
reused by later searches.`,
	RunE: runFind,
}

var importCmd = &cobra.Command{
	Use:   "import-medications [file.csv]",
	Short: "Bulk-create catalog medications from a CSV file",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	medicationsCmd.Flags().IntVar(&listLimit, "limit", 20, "maximum number of results (0 for all)")

	findCmd.Flags().Int64Var(&findMedication, "medication", 0, "medication id")
	findCmd.Flags().Int64SliceVar(&findMedications, "medications", nil, "medication ids for a multi search")
	findCmd.Flags().Float64Var(&findLat, "lat", 0, "latitude")
	findCmd.Flags().Float64Var(&findLon, "lon", 0, "longitude")
	findCmd.Flags().StringVar(&findSort, "sort", "", "distance, price, rating or stock")
	findCmd.Flags().StringVar(&findInsurance, "insurance", "", "insurance filter, or \"special\"")

	rootCmd.AddCommand(serveCmd, medicationsCmd, findCmd, importCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := seed.EnsureAdmin(ctx, a.db, cfg.AdminEmail, cfg.AdminPassword, logger); err != nil {
		return err
	}

	handler := api.New(a.db, cfg.Secret, cfg.AllowedOrigins, logger, a.svc)
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("PharmFinder server starting", zap.String("addr", srv.Addr), zap.String("backend", cfg.BackendURL))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runMedications(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var meds []domain.Medication
	if len(args) == 1 {
		meds, err = a.svc.Search.Autocomplete(cmd.Context(), args[0], listLimit)
	} else {
		meds, err = a.svc.Search.Catalog(cmd.Context())
		if listLimit > 0 && len(meds) > listLimit {
			meds = meds[:listLimit]
		}
	}
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNOM\tCATÉGORIE\tPRIX")
	for _, m := range meds {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", m.ID, m.Name, m.CategoryName(), currency.FormatInt(m.Price, true))
	}
	return w.Flush()
}

func runFind(cmd *cobra.Command, args []string) error {
	sortBy, err := ranking.ParseSortBy(findSort)
	if err != nil {
		return err
	}
	if findMedication == 0 && len(findMedications) == 0 {
		return errors.New("--medication or --medications is required")
	}

	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	if len(findMedications) > 0 {
		res, err := a.svc.Search.Multi(ctx, search.MultiRequest{
			MedicationIDs: findMedications,
			Insurance:     findInsurance,
			SortBy:        sortBy,
		})
		if err != nil {
			return err
		}
		return printRanked(cmd, res.Pharmacies)
	}

	req := search.SingleRequest{
		Device:       cliDevice,
		MedicationID: findMedication,
		Insurance:    findInsurance,
		SortBy:       sortBy,
	}
	if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon") {
		coords, err := a.svc.Locations.Refresh(ctx, cliDevice, geo.Static(domain.Coordinates{Lat: findLat, Lon: findLon}))
		if err != nil {
			return err
		}
		req.Location = &coords
	}
	res, err := a.svc.Search.Pharmacies(ctx, req)
	if err != nil {
		return err
	}
	return printRanked(cmd, res.Pharmacies)
}

func printRanked(cmd *cobra.Command, pharmacies []ranking.Ranked) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPHARMACIE\tDISTANCE\tNOTE\tHORAIRES\tDISPONIBILITÉ")
	for _, p := range pharmacies {
		availability := ""
		if p.Availability != nil {
			availability = p.Availability.StatusLabel + " (" + strconv.Itoa(p.Availability.MatchCount) + "/" + strconv.Itoa(p.Availability.TotalSearched) + ")"
		} else if p.MedicationPrice != nil {
			availability = currency.FormatInt(*p.MedicationPrice, true)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%.1f\t%s\t%s\n", p.ID, p.Name, p.Distance, p.Rating, p.OpenHours, availability)
	}
	return w.Flush()
}

func runImport(cmd *cobra.Command, args []string) error {
	file, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("unable to open %s: %w", args[0], err)
	}
	defer file.Close()

	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.svc.Admin.ImportMedications(cmd.Context(), file)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d créé(s), %d doublon(s), %d ignoré(s)\n", report.Created, report.Duplicates, report.Skipped)
	for _, e := range report.Errors {
		fmt.Fprintln(cmd.OutOrStdout(), "  "+strings.TrimSpace(e))
	}
	return nil
}
