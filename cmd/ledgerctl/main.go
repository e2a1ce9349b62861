// ledgerctl tareas de operación sobre el libro de inventario.
//
// Uso:
//
//	ledgerctl verify
//	ledgerctl import-products [--encoding latin1] [--no-header] productos.csv
//	ledgerctl token --user <id> --role admin|warehouse-staff|sales-rep
//
// Lee la misma configuración que la API (STORAGE_DRIVER, DATA_DIR, DATABASE_URL, JWT_SECRET...).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/jhoicas/stock-ledger/internal/application/usecase"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memstore"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/storage"
	"github.com/jhoicas/stock-ledger/pkg/config"
	"github.com/jhoicas/stock-ledger/pkg/jwt"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cargar configuración: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var code int
	switch os.Args[1] {
	case "verify":
		code = runVerify(ctx, cfg, log, os.Args[2:])
	case "import-products":
		code = runImport(ctx, cfg, log, os.Args[2:])
	case "token":
		code = runToken(cfg, os.Args[2:])
	default:
		usage()
		code = 2
	}
	os.Exit(code)
}

func usage() {
	fmt.Fprintln(os.Stderr, "uso: ledgerctl verify | import-products <archivo.csv> | token --user <id> --role <rol>")
}

// openStore carga el libro completo (incluida la reconciliación de arranque).
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (*memstore.Store, repository.Persister, func(), error) {
	persister, closeFn, err := storage.Open(ctx, cfg, log.With().Logger(), nil)
	if err != nil {
		return nil, nil, nil, err
	}
	store := memstore.New(persister, log.Component("memstore"))
	if err := store.Load(ctx); err != nil {
		closeFn()
		return nil, nil, nil, err
	}
	return store, persister, closeFn, nil
}

func runVerify(ctx context.Context, cfg *config.Config, log *logger.Logger, args []string) int {
	fs := pflag.NewFlagSet("verify", pflag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	store, persister, closeFn, err := openStore(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Abrir libro: %v\n", err)
		return 1
	}
	defer closeFn()

	diags, report := store.Diagnostics()
	for _, d := range diags {
		fmt.Printf("%-14s %-9s %6d registros", d.Collection, d.Status, d.Records)
		if d.QuarantinedTo != "" {
			fmt.Printf("  cuarentena: %s", d.QuarantinedTo)
		}
		fmt.Println()
	}
	if report.Skipped {
		fmt.Printf("reconciliación omitida: %s\n", report.Reason)
	} else {
		fmt.Printf("reconciliación: %d corregidos, %d recreados, %d huérfanos eliminados\n",
			report.Corrected, report.Created, report.Orphans)
	}
	if report.SaveError != "" {
		fmt.Printf("no se pudo guardar la corrección: %s\n", report.SaveError)
	}

	pending := store.Verify()
	for _, d := range pending {
		fmt.Printf("descuadre %s: registrado %s, según log %s\n", d.Key, d.Recorded, d.Projected)
	}

	var mismatches []balanceMismatch
	if b, ok := persister.(logBalancer); ok {
		mismatches, err = compareLogBalances(ctx, store, b)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Saldos en base: %v\n", err)
			return 1
		}
		for _, m := range mismatches {
			fmt.Printf("descuadre en base %s: publicado %s, log guardado %s\n", m.Key, m.Published, m.Stored)
		}
	}
	if store.Degraded() || report.SaveError != "" || len(pending) > 0 || len(mismatches) > 0 {
		return 1
	}
	fmt.Println("libro consistente")
	return 0
}

func runImport(ctx context.Context, cfg *config.Config, log *logger.Logger, args []string) int {
	fs := pflag.NewFlagSet("import-products", pflag.ContinueOnError)
	encoding := fs.String("encoding", "utf-8", "codificación del archivo: utf-8 | latin1 | windows-1252")
	noHeader := fs.Bool("no-header", false, "el archivo no trae fila de encabezado")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		usage()
		return 2
	}
	f, err := os.Open(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Abrir CSV: %v\n", err)
		return 1
	}
	defer f.Close()

	r, err := decodeReader(f, *encoding)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	rows, invalid, err := parseProducts(r, !*noHeader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	store, _, closeFn, err := openStore(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Abrir libro: %v\n", err)
		return 1
	}
	defer closeFn()

	res, err := importProducts(ctx, usecase.NewProductUseCase(store, log.Component("import")), rows)
	fmt.Printf("creados: %d, duplicados: %d, inválidos: %d\n", res.Created, len(res.Duplicates), len(invalid)+len(res.Invalid))
	for _, sku := range res.Duplicates {
		fmt.Printf("  duplicado: %s\n", sku)
	}
	for _, msg := range append(invalid, res.Invalid...) {
		fmt.Printf("  %s\n", msg)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Importación interrumpida: %v\n", err)
		return 1
	}
	return 0
}

func runToken(cfg *config.Config, args []string) int {
	fs := pflag.NewFlagSet("token", pflag.ContinueOnError)
	user := fs.String("user", "", "ID del actor")
	role := fs.String("role", jwt.RoleWarehouseStaff, "rol: admin | warehouse-staff | sales-rep")
	exp := fs.Int("exp", cfg.JWT.Expiration, "minutos de validez")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *user == "" {
		fmt.Fprintln(os.Stderr, "--user es requerido")
		return 2
	}
	switch *role {
	case jwt.RoleAdmin, jwt.RoleWarehouseStaff, jwt.RoleSalesRep:
	default:
		fmt.Fprintf(os.Stderr, "rol desconocido: %s\n", *role)
		return 2
	}
	tok, err := jwt.Generate(cfg.JWT.Secret, *user, *role, cfg.JWT.Issuer, *exp)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Generar token: %v\n", err)
		return 1
	}
	fmt.Println(tok)
	return 0
}
