package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/optilens/demand-engine/internal/domain"
)

// Artifact file names under the data dir.
const (
	ordersFile     = "orders.csv"
	productsFile   = "products.csv"
	locationsFile  = "locations.csv"
	inventoryFile  = "inventory.csv"
	forecastFile   = "forecast.csv"
	productionFile = "production_plan.csv"
	allocationFile = "allocation_plan.csv"
	stockRiskFile  = "stock_risk.csv"
	optimizedFile  = "optimized_production_plan.csv"
	scenarioFile   = "scenario_results.csv"
)

// Exported artifact names, for callers that publish the generated files.
const (
	ForecastArtifact   = forecastFile
	ProductionArtifact = productionFile
	AllocationArtifact = allocationFile
	StockRiskArtifact  = stockRiskFile
	OptimizedArtifact  = optimizedFile
	ScenarioArtifact   = scenarioFile
)

const dateLayout = "2006-01-02"

// CSVStore reads and writes pipeline tables as CSV files in a single
// directory. Writes go to a temp file first and are renamed into place so
// readers never see a half-written table.
type CSVStore struct {
	dataDir string
}

func NewCSVStore(dataDir string) *CSVStore {
	return &CSVStore{dataDir: dataDir}
}

// Path returns the on-disk location of an artifact file.
func (s *CSVStore) Path(name string) string {
	return filepath.Join(s.dataDir, name)
}

var columnNameSanitizer = strings.NewReplacer(" ", "", "_", "", ".", "", "-", "", "/", "")

func normalizeColumnName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	return columnNameSanitizer.Replace(name)
}

// table is a parsed CSV file with case/underscore-insensitive column lookup.
type table struct {
	header  []string
	rows    [][]string
	indexes map[string]int
}

func (t *table) col(names ...string) int {
	for _, name := range names {
		if idx, ok := t.indexes[normalizeColumnName(name)]; ok {
			return idx
		}
	}
	return -1
}

func (t *table) get(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func (t *table) getFloat(row []string, idx int) float64 {
	v := t.get(row, idx)
	if v == "" {
		return 0
	}
	v = strings.ReplaceAll(v, ",", "")
	f, _ := strconv.ParseFloat(v, 64)
	return f
}

func (t *table) getInt(row []string, idx int) int {
	return int(math.Round(t.getFloat(row, idx)))
}

func (t *table) getDate(row []string, idx int) (time.Time, error) {
	v := t.get(row, idx)
	if v == "" {
		return time.Time{}, fmt.Errorf("empty date value")
	}
	return time.Parse(dateLayout, v)
}

func (s *CSVStore) readTable(name string) (*table, error) {
	path := filepath.Join(s.dataDir, name)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.NewNotFound(name, err)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}

	t := &table{header: header, indexes: make(map[string]int, len(header))}
	for i, h := range header {
		key := normalizeColumnName(h)
		if _, ok := t.indexes[key]; !ok {
			t.indexes[key] = i
		}
	}

	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		t.rows = append(t.rows, record)
	}

	return t, nil
}

// writeTable writes header+rows to a temp file in the data dir and renames
// it over the target path.
func (s *CSVStore) writeTable(name string, header []string, rows [][]string) error {
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dataDir, name+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return err
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			tmp.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, filepath.Join(s.dataDir, name))
}

func (s *CSVStore) LoadOrders(ctx context.Context) ([]domain.Order, error) {
	t, err := s.readTable(ordersFile)
	if err != nil {
		return nil, err
	}

	idxDate := t.col("date", "order_date")
	idxLoc := t.col("location_id", "store_id")
	idxProd := t.col("product_id", "sku_id")
	idxRegion := t.col("region", "city")
	idxSeg := t.col("segment", "power_cluster")
	idxQty := t.col("quantity", "qty")
	idxPrice := t.col("price")

	orders := make([]domain.Order, 0, len(t.rows))
	for _, row := range t.rows {
		date, err := t.getDate(row, idxDate)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ordersFile, err)
		}
		orders = append(orders, domain.Order{
			Date:       date,
			LocationID: t.get(row, idxLoc),
			ProductID:  t.get(row, idxProd),
			Region:     t.get(row, idxRegion),
			Segment:    t.get(row, idxSeg),
			Quantity:   t.getFloat(row, idxQty),
			Price:      t.getFloat(row, idxPrice),
		})
	}
	return orders, nil
}

func (s *CSVStore) LoadProducts(ctx context.Context) ([]domain.Product, error) {
	t, err := s.readTable(productsFile)
	if err != nil {
		return nil, err
	}

	idxProd := t.col("product_id", "sku_id")
	idxFrame := t.col("frame_type")
	idxLens := t.col("lens_type")
	idxColor := t.col("color")
	idxBand := t.col("price_band")
	idxCost := t.col("base_cost")

	products := make([]domain.Product, 0, len(t.rows))
	for _, row := range t.rows {
		products = append(products, domain.Product{
			ProductID: t.get(row, idxProd),
			FrameType: t.get(row, idxFrame),
			LensType:  t.get(row, idxLens),
			Color:     t.get(row, idxColor),
			PriceBand: t.get(row, idxBand),
			BaseCost:  t.getFloat(row, idxCost),
		})
	}
	return products, nil
}

func (s *CSVStore) LoadLocations(ctx context.Context) ([]domain.Location, error) {
	t, err := s.readTable(locationsFile)
	if err != nil {
		return nil, err
	}

	idxLoc := t.col("location_id", "store_id")
	idxRegion := t.col("region", "city")
	idxTier := t.col("tier")
	idxFootfall := t.col("avg_footfall")

	locations := make([]domain.Location, 0, len(t.rows))
	for _, row := range t.rows {
		locations = append(locations, domain.Location{
			LocationID:  t.get(row, idxLoc),
			Region:      t.get(row, idxRegion),
			Tier:        t.get(row, idxTier),
			AvgFootfall: t.getFloat(row, idxFootfall),
		})
	}
	return locations, nil
}

func (s *CSVStore) LoadInventory(ctx context.Context) ([]domain.InventorySnapshot, error) {
	t, err := s.readTable(inventoryFile)
	if err != nil {
		return nil, err
	}

	idxLoc := t.col("location_id", "store_id")
	idxProd := t.col("product_id", "sku_id")
	idxStock := t.col("stock_level", "stock")
	idxLead := t.col("lead_time_days", "lead_time")

	snapshots := make([]domain.InventorySnapshot, 0, len(t.rows))
	for _, row := range t.rows {
		snapshots = append(snapshots, domain.InventorySnapshot{
			LocationID:   t.get(row, idxLoc),
			ProductID:    t.get(row, idxProd),
			StockLevel:   t.getFloat(row, idxStock),
			LeadTimeDays: t.getInt(row, idxLead),
		})
	}
	return snapshots, nil
}

// LoadForecast reads the forecast table. Older forecast files carry no
// confidence columns; those rows are upgraded in place with synthesized
// bounds (0.7x / 1.3x) and a neutral 0.5 confidence.
func (s *CSVStore) LoadForecast(ctx context.Context) ([]domain.ForecastRecord, error) {
	t, err := s.readTable(forecastFile)
	if err != nil {
		return nil, err
	}

	idxDate := t.col("date")
	idxLoc := t.col("location_id", "store_id")
	idxRegion := t.col("region", "city")
	idxProd := t.col("product_id", "sku_id")
	idxSeg := t.col("segment", "power_cluster")
	idxDemand := t.col("predicted_demand")
	idxLower := t.col("lower_bound")
	idxUpper := t.col("upper_bound")
	idxConf := t.col("confidence_score")

	hasConfidence := idxLower >= 0 && idxUpper >= 0 && idxConf >= 0

	records := make([]domain.ForecastRecord, 0, len(t.rows))
	for _, row := range t.rows {
		date, err := t.getDate(row, idxDate)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", forecastFile, err)
		}
		rec := domain.ForecastRecord{
			Date:            date,
			LocationID:      t.get(row, idxLoc),
			Region:          t.get(row, idxRegion),
			ProductID:       t.get(row, idxProd),
			Segment:         t.get(row, idxSeg),
			PredictedDemand: t.getFloat(row, idxDemand),
		}
		if hasConfidence {
			rec.LowerBound = t.getFloat(row, idxLower)
			rec.UpperBound = t.getFloat(row, idxUpper)
			rec.ConfidenceScore = t.getFloat(row, idxConf)
		} else {
			rec.LowerBound = 0.7 * rec.PredictedDemand
			rec.UpperBound = 1.3 * rec.PredictedDemand
			rec.ConfidenceScore = 0.5
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *CSVStore) SaveForecast(ctx context.Context, records []domain.ForecastRecord) error {
	header := []string{
		"date", "location_id", "region", "product_id", "segment",
		"predicted_demand", "lower_bound", "upper_bound", "confidence_score",
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.Date.Format(dateLayout),
			r.LocationID,
			r.Region,
			r.ProductID,
			r.Segment,
			formatFloat(r.PredictedDemand),
			formatFloat(r.LowerBound),
			formatFloat(r.UpperBound),
			formatFloat(r.ConfidenceScore),
		})
	}
	return s.writeTable(forecastFile, header, rows)
}

func (s *CSVStore) LoadProductionPlan(ctx context.Context) ([]domain.ProductionRecommendation, error) {
	t, err := s.readTable(productionFile)
	if err != nil {
		return nil, err
	}

	idxProd := t.col("product_id", "sku_id")
	idxSeg := t.col("segment", "power_cluster")
	idxQty := t.col("recommended_qty", "recommended_production_qty")

	plan := make([]domain.ProductionRecommendation, 0, len(t.rows))
	for _, row := range t.rows {
		plan = append(plan, domain.ProductionRecommendation{
			ProductID:      t.get(row, idxProd),
			Segment:        t.get(row, idxSeg),
			RecommendedQty: t.getInt(row, idxQty),
		})
	}
	return plan, nil
}

func (s *CSVStore) SaveProductionPlan(ctx context.Context, plan []domain.ProductionRecommendation) error {
	header := []string{"product_id", "segment", "recommended_qty"}
	rows := make([][]string, 0, len(plan))
	for _, p := range plan {
		rows = append(rows, []string{p.ProductID, p.Segment, strconv.Itoa(p.RecommendedQty)})
	}
	return s.writeTable(productionFile, header, rows)
}

func (s *CSVStore) SaveAllocationPlan(ctx context.Context, plan []domain.AllocationRecord) error {
	header := []string{"region", "product_id", "segment", "allocated_units"}
	rows := make([][]string, 0, len(plan))
	for _, a := range plan {
		rows = append(rows, []string{a.Region, a.ProductID, a.Segment, strconv.Itoa(a.AllocatedUnits)})
	}
	return s.writeTable(allocationFile, header, rows)
}

func (s *CSVStore) SaveStockRisk(ctx context.Context, risks []domain.StockRiskRecord) error {
	header := []string{
		"location_id", "region", "product_id", "segment",
		"location_demand", "stock_level", "shortage", "risk_probability",
		"revenue_opportunity",
	}
	rows := make([][]string, 0, len(risks))
	for _, r := range risks {
		rows = append(rows, []string{
			r.LocationID,
			r.Region,
			r.ProductID,
			r.Segment,
			formatFloat(r.LocationDemand),
			formatFloat(r.StockLevel),
			formatFloat(r.Shortage),
			formatFloat(r.RiskProbability),
			formatFloat(r.RevenueOpportunity),
		})
	}
	return s.writeTable(stockRiskFile, header, rows)
}

func optimizedHeader() []string {
	return []string{
		"product_id", "segment", "recommended_qty", "optimized_qty",
		"price_band", "margin", "revenue_captured", "revenue_lost",
		"capacity_utilization_pct",
	}
}

func optimizedRows(plan *domain.OptimizedPlan) [][]string {
	rows := make([][]string, 0, len(plan.Records))
	for _, r := range plan.Records {
		rows = append(rows, []string{
			r.ProductID,
			r.Segment,
			strconv.Itoa(r.RecommendedQty),
			strconv.Itoa(r.OptimizedQty),
			r.PriceBand,
			formatFloat(r.Margin),
			formatFloat(r.RevenueCaptured),
			formatFloat(r.RevenueLost),
			formatFloat(r.CapacityUtilizationPct),
		})
	}
	return rows
}

func (s *CSVStore) SaveOptimizedPlan(ctx context.Context, plan *domain.OptimizedPlan) error {
	return s.writeTable(optimizedFile, optimizedHeader(), optimizedRows(plan))
}

func (s *CSVStore) SaveScenarioPlan(ctx context.Context, plan *domain.OptimizedPlan) error {
	return s.writeTable(scenarioFile, optimizedHeader(), optimizedRows(plan))
}

// LoadOptimizedPlan reads the persisted optimized plan back. Run-level
// totals are rebuilt from the rows; Capacity is left for the caller since
// the table does not carry it.
func (s *CSVStore) LoadOptimizedPlan(ctx context.Context) (*domain.OptimizedPlan, error) {
	t, err := s.readTable(optimizedFile)
	if err != nil {
		return nil, err
	}

	idxProd := t.col("product_id", "sku_id")
	idxSeg := t.col("segment", "power_cluster")
	idxRec := t.col("recommended_qty", "recommended_production_qty")
	idxOpt := t.col("optimized_qty")
	idxBand := t.col("price_band")
	idxMargin := t.col("margin")
	idxCaptured := t.col("revenue_captured")
	idxLost := t.col("revenue_lost")
	idxUtil := t.col("capacity_utilization_pct")

	plan := &domain.OptimizedPlan{}
	for _, row := range t.rows {
		rec := domain.OptimizedPlanRecord{
			ProductID:              t.get(row, idxProd),
			Segment:                t.get(row, idxSeg),
			RecommendedQty:         t.getInt(row, idxRec),
			OptimizedQty:           t.getInt(row, idxOpt),
			PriceBand:              t.get(row, idxBand),
			Margin:                 t.getFloat(row, idxMargin),
			RevenueCaptured:        t.getFloat(row, idxCaptured),
			RevenueLost:            t.getFloat(row, idxLost),
			CapacityUtilizationPct: t.getFloat(row, idxUtil),
		}
		plan.Records = append(plan.Records, rec)
		plan.TotalRecommended += rec.RecommendedQty
		plan.TotalOptimized += rec.OptimizedQty
		plan.RevenueCaptured += rec.RevenueCaptured
		plan.RevenueLost += rec.RevenueLost
	}
	if len(plan.Records) > 0 {
		plan.UtilizationPct = plan.Records[0].CapacityUtilizationPct
	}
	return plan, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
