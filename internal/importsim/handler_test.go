package importsim_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	api "github.com/autolot/dealer-admin/api/v1alpha1"
	"github.com/autolot/dealer-admin/internal/client"
	"github.com/autolot/dealer-admin/internal/config"
	"github.com/autolot/dealer-admin/internal/importer"
	"github.com/autolot/dealer-admin/internal/importsim"
	"github.com/autolot/dealer-admin/internal/sheet"
	"github.com/autolot/dealer-admin/internal/sheet/sheettest"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var _ = Describe("import simulator", func() {
	var (
		sim *importsim.Server
		ts  *httptest.Server
		cli *client.ImportClient
	)

	workbook := func(n int, mutate func(rows [][]any)) io.Reader {
		rows := sheettest.CarRows(n)
		if mutate != nil {
			mutate(rows)
		}
		return bytes.NewReader(sheettest.Workbook(sheettest.DefaultHeaders, rows))
	}

	BeforeEach(func() {
		var err error
		sim, err = importsim.New(&config.SimConfig{
			BasePath:       "/api",
			ProcessDelay:   20 * time.Millisecond,
			SessionTTL:     time.Hour,
			MaxUploadBytes: 1 << 20,
		}, nil, zap.NewNop(), prometheus.NewRegistry())
		Expect(err).To(BeNil())

		ts = httptest.NewServer(sim.Handler())
		cli = client.NewImportClient(ts.URL+"/api", 5*time.Second)
	})

	AfterEach(func() {
		ts.Close()
		sim.Close()
	})

	Context("upload", func() {
		It("returns a preview with row errors", func() {
			resp, err := cli.UploadExcel(context.TODO(), "cars.xlsx", workbook(10, func(rows [][]any) {
				rows[2][1] = "call us"
			}))
			Expect(err).To(BeNil())
			Expect(resp.JobID).NotTo(BeEmpty())
			Expect(resp.Total).To(Equal(10))
			Expect(resp.Preview).To(HaveLen(10))
			Expect(resp.Errors).To(HaveLen(1))
			Expect(resp.Errors[0].Data).To(Equal(resp.Preview[2]))
			Expect(importer.ValidCount(resp.Preview, resp.Errors)).To(Equal(9))
		})

		It("reports prices that are not finite numbers as row errors", func() {
			resp, err := cli.UploadExcel(context.TODO(), "cars.xlsx", workbook(10, func(rows [][]any) {
				rows[2][1] = "NaN"
				rows[4][1] = "Inf"
			}))
			Expect(err).To(BeNil())
			Expect(resp.Preview).To(HaveLen(10))
			Expect(resp.Errors).To(HaveLen(2))
			Expect(importer.ValidCount(resp.Preview, resp.Errors)).To(Equal(8))
		})

		It("rejects files that are not Excel", func() {
			_, err := cli.UploadExcel(context.TODO(), "cars.csv", strings.NewReader("name,price"))
			Expect(err).To(MatchError("Only Excel files are allowed"))
			Expect(client.KindOf(err)).To(Equal(client.KindValidation))
		})

		It("rejects a workbook without required columns", func() {
			data := sheettest.Workbook([]string{"Name", "Year"}, [][]any{{"Car", 2020}})
			_, err := cli.UploadExcel(context.TODO(), "cars.xlsx", bytes.NewReader(data))
			Expect(err).NotTo(BeNil())
			Expect(err.Error()).To(ContainSubstring("price"))
		})

		It("rejects a workbook with only a header", func() {
			_, err := cli.UploadExcel(context.TODO(), "cars.xlsx", workbook(0, nil))
			Expect(err).To(MatchError("No data rows found in file"))
		})

		It("rejects a request without the excel field", func() {
			resp, err := http.Post(ts.URL+"/api/cars/bulk-import/upload", "multipart/form-data; boundary=x", strings.NewReader("--x--\r\n"))
			Expect(err).To(BeNil())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Context("confirm and status", func() {
		It("commits the valid rows", func() {
			up, err := cli.UploadExcel(context.TODO(), "cars.xlsx", workbook(3, nil))
			Expect(err).To(BeNil())

			confirmed, err := cli.ConfirmImport(context.TODO(), up.JobID)
			Expect(err).To(BeNil())
			Expect(confirmed.Status).To(Equal(api.ImportStatusProcessing))

			Eventually(func() api.ImportStatus {
				status, err := cli.GetImportStatus(context.TODO(), up.JobID)
				Expect(err).To(BeNil())
				return status.Status
			}).Should(Equal(api.ImportStatusCompleted))

			cars, err := cli.ListCars(context.TODO())
			Expect(err).To(BeNil())
			Expect(cars).To(HaveLen(3))
		})

		It("reports duplicates as errors", func() {
			up, err := cli.UploadExcel(context.TODO(), "cars.xlsx", workbook(2, nil))
			Expect(err).To(BeNil())
			_, err = cli.ConfirmImport(context.TODO(), up.JobID)
			Expect(err).To(BeNil())
			Eventually(func() (int, error) {
				cars, err := cli.ListCars(context.TODO())
				return len(cars), err
			}).Should(Equal(2))

			again, err := cli.UploadExcel(context.TODO(), "cars.xlsx", workbook(2, nil))
			Expect(err).To(BeNil())
			_, err = cli.ConfirmImport(context.TODO(), again.JobID)
			Expect(err).To(BeNil())

			var status *api.ImportStatusResponse
			Eventually(func() api.ImportStatus {
				status, err = cli.GetImportStatus(context.TODO(), again.JobID)
				Expect(err).To(BeNil())
				return status.Status
			}).Should(Equal(api.ImportStatusCompletedWithErrors))
			Expect(status.Errors).To(HaveLen(2))
			Expect(status.Errors[0].Error).To(ContainSubstring("already exists"))
		})

		It("returns not found for an unknown job", func() {
			_, err := cli.ConfirmImport(context.TODO(), "unknown")
			Expect(client.IsNotFound(err)).To(BeTrue())
			Expect(err).To(MatchError("Import session not found"))

			_, err = cli.GetImportStatus(context.TODO(), "unknown")
			Expect(client.IsNotFound(err)).To(BeTrue())
		})

		It("refuses to confirm twice", func() {
			up, err := cli.UploadExcel(context.TODO(), "cars.xlsx", workbook(1, nil))
			Expect(err).To(BeNil())
			_, err = cli.ConfirmImport(context.TODO(), up.JobID)
			Expect(err).To(BeNil())

			_, err = cli.ConfirmImport(context.TODO(), up.JobID)
			Expect(client.KindOf(err)).To(Equal(client.KindValidation))
		})

		It("requires a job id", func() {
			_, err := cli.ConfirmImport(context.TODO(), "")
			Expect(err).To(MatchError("jobId is required"))
		})
	})

	Context("session", func() {
		It("deletes a pending session", func() {
			up, err := cli.UploadExcel(context.TODO(), "cars.xlsx", workbook(1, nil))
			Expect(err).To(BeNil())

			Expect(cli.CancelImport(context.TODO(), up.JobID)).To(Succeed())
			_, err = cli.GetImportStatus(context.TODO(), up.JobID)
			Expect(client.IsNotFound(err)).To(BeTrue())

			err = cli.CancelImport(context.TODO(), up.JobID)
			Expect(client.IsNotFound(err)).To(BeTrue())
		})
	})

	Context("template", func() {
		It("serves a workbook that parses", func() {
			var buf bytes.Buffer
			n, err := cli.DownloadTemplate(context.TODO(), &buf)
			Expect(err).To(BeNil())
			Expect(n).To(Equal(int64(buf.Len())))

			rows, rowErrors, err := sheet.ParseWorkbook(&buf)
			Expect(err).To(BeNil())
			Expect(rows).To(HaveLen(1))
			Expect(rowErrors).To(BeEmpty())
		})
	})

	Context("probes", func() {
		It("serves health and metrics", func() {
			resp, err := http.Get(ts.URL + "/health")
			Expect(err).To(BeNil())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			_, err = cli.ListCars(context.TODO())
			Expect(err).To(BeNil())

			resp, err = http.Get(ts.URL + "/metrics")
			Expect(err).To(BeNil())
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			Expect(err).To(BeNil())
			Expect(string(body)).To(ContainSubstring("import_sim_requests_total"))
			Expect(string(body)).To(ContainSubstring("dealer_import_cars_total"))
		})

		It("echoes the request id", func() {
			req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/cars", nil)
			Expect(err).To(BeNil())
			req.Header.Set("x-request-id", "req-42")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).To(BeNil())
			resp.Body.Close()
			Expect(resp.Header.Get("x-request-id")).To(Equal("req-42"))
		})
	})

	Context("with the coordinator", func() {
		It("runs a full import", func() {
			refreshed := make(chan int, 1)
			coordinator := importer.NewCoordinator(cli, importer.Options{
				PollInterval: 10 * time.Millisecond,
				OnRefresh: func(ctx context.Context) {
					cars, err := cli.ListCars(ctx)
					if err == nil {
						refreshed <- len(cars)
					}
				},
			})

			job, err := coordinator.UploadExcel(context.TODO(), "cars.xlsx", workbook(10, func(rows [][]any) {
				rows[2][1] = "call us"
			}))
			Expect(err).To(BeNil())
			Expect(job.ValidCount()).To(Equal(9))

			Expect(coordinator.ConfirmImport(context.TODO())).To(Succeed())
			Eventually(func() importer.Stage { return coordinator.Snapshot().Stage }).Should(Equal(importer.StageComplete))
			Eventually(refreshed).Should(Receive(Equal(9)))

			snapshot := coordinator.Snapshot()
			Expect(snapshot.Status).To(Equal(api.ImportStatusCompletedWithErrors))
			Expect(snapshot.Progress).To(Equal(importer.ProgressDone))
			Expect(snapshot.Errors).To(HaveLen(1))
			Eventually(coordinator.ActivePolls).Should(Equal(0))
		})

		It("cancels the session on close", func() {
			coordinator := importer.NewCoordinator(cli, importer.Options{PollInterval: 10 * time.Millisecond})
			job, err := coordinator.UploadExcel(context.TODO(), "cars.xlsx", workbook(2, nil))
			Expect(err).To(BeNil())

			Expect(coordinator.Close(context.TODO())).To(Succeed())
			_, err = cli.GetImportStatus(context.TODO(), job.JobID)
			Expect(client.IsNotFound(err)).To(BeTrue())
			Expect(coordinator.Snapshot().Stage).To(Equal(importer.StageUpload))
		})
	})
})
