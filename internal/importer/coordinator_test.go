package importer_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	api "github.com/autolot/dealer-admin/api/v1alpha1"
	"github.com/autolot/dealer-admin/internal/client"
	"github.com/autolot/dealer-admin/internal/events"
	"github.com/autolot/dealer-admin/internal/importer"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type transition struct {
	from, to importer.Stage
}

var _ = Describe("coordinator", func() {
	var (
		service     *fakeService
		notifier    *recordingNotifier
		sink        *recordingSink
		refreshes   *counter
		transitions []transition
		transMu     sync.Mutex
		coordinator *importer.Coordinator
	)

	newCoordinator := func(interval time.Duration) *importer.Coordinator {
		return importer.NewCoordinator(service, importer.Options{
			PollInterval: interval,
			Notifier:     notifier,
			Events:       sink,
			OnRefresh:    func(context.Context) { refreshes.Inc() },
			OnStageChange: func(from, to importer.Stage) {
				transMu.Lock()
				defer transMu.Unlock()
				transitions = append(transitions, transition{from, to})
			},
		})
	}

	stages := func() []transition {
		transMu.Lock()
		defer transMu.Unlock()
		return append([]transition(nil), transitions...)
	}

	stage := func() importer.Stage {
		return coordinator.Snapshot().Stage
	}

	upload := func() {
		_, err := coordinator.UploadExcel(context.TODO(), "cars.xlsx", strings.NewReader("xlsx"))
		Expect(err).To(BeNil())
	}

	BeforeEach(func() {
		service = newFakeService(10)
		notifier = &recordingNotifier{}
		sink = &recordingSink{}
		refreshes = &counter{}
		transMu.Lock()
		transitions = nil
		transMu.Unlock()
		coordinator = newCoordinator(10 * time.Millisecond)
	})

	AfterEach(func() {
		coordinator.ResetImport()
		Expect(coordinator.ActivePolls()).To(Equal(0))
	})

	Context("initial state", func() {
		It("starts in upload with no job", func() {
			job := coordinator.Snapshot()
			Expect(job.Stage).To(Equal(importer.StageUpload))
			Expect(job.JobID).To(BeEmpty())
			Expect(job.Preview).To(BeEmpty())
			Expect(job.Progress).To(Equal(importer.ProgressIdle))
		})
	})

	Context("upload", func() {
		It("moves to preview with the parsed rows", func() {
			invalid := service.upload.Preview[2]
			service.upload.Errors = []api.RowError{{Data: invalid, Error: "row 4: price must be greater than 0"}}

			job, err := coordinator.UploadExcel(context.TODO(), "cars.xlsx", strings.NewReader("xlsx"))
			Expect(err).To(BeNil())
			Expect(job.JobID).To(Equal("job-1"))

			snapshot := coordinator.Snapshot()
			Expect(snapshot.Stage).To(Equal(importer.StagePreview))
			Expect(snapshot.Status).To(Equal(api.ImportStatusPending))
			Expect(snapshot.Total).To(Equal(10))
			Expect(snapshot.Preview).To(HaveLen(10))
			Expect(snapshot.ValidCount()).To(Equal(9))
			Expect(snapshot.ValidCount() + len(snapshot.Errors)).To(Equal(len(snapshot.Preview)))

			Expect(stages()).To(ContainElement(transition{importer.StageUpload, importer.StagePreview}))
			Expect(notifier.Messages()).To(ContainElement("warning: 1 of 10 rows have errors and will be skipped"))
			Expect(sink.Kinds()).To(Equal([]string{events.ImportUploadedKind}))
		})

		It("stays in upload when the service rejects the file", func() {
			service.uploadErr = &client.APIError{Kind: client.KindValidation, StatusCode: 400, Message: "Only Excel files are allowed"}

			_, err := coordinator.UploadExcel(context.TODO(), "cars.csv", strings.NewReader("a,b"))
			Expect(err).NotTo(BeNil())
			Expect(client.KindOf(err)).To(Equal(client.KindValidation))
			Expect(stage()).To(Equal(importer.StageUpload))
			Expect(coordinator.Snapshot().JobID).To(BeEmpty())
			Expect(notifier.Messages()).To(ContainElement("error: Only Excel files are allowed"))
		})

		It("drops a response that arrives after a reset", func() {
			service.uploadGate = make(chan struct{})

			done := make(chan error, 1)
			go func() {
				_, err := coordinator.UploadExcel(context.TODO(), "cars.xlsx", strings.NewReader("xlsx"))
				done <- err
			}()

			Eventually(func() int {
				service.mu.Lock()
				defer service.mu.Unlock()
				return service.uploadCalls
			}).Should(Equal(1))
			coordinator.ResetImport()
			close(service.uploadGate)

			Eventually(done).Should(Receive(MatchError(importer.ErrSuperseded)))
			Expect(stage()).To(Equal(importer.StageUpload))
			Expect(coordinator.Snapshot().JobID).To(BeEmpty())
		})

		It("discards the previous job and its poller", func() {
			upload()
			Expect(coordinator.ConfirmImport(context.TODO())).To(Succeed())
			Eventually(coordinator.ActivePolls).Should(Equal(1))

			service.upload.JobID = "job-2"
			upload()

			Expect(coordinator.ActivePolls()).To(Equal(0))
			job := coordinator.Snapshot()
			Expect(job.JobID).To(Equal("job-2"))
			Expect(job.Stage).To(Equal(importer.StagePreview))

			calls := service.StatusCalls()
			Consistently(service.StatusCalls, 60*time.Millisecond).Should(Equal(calls))
		})
	})

	Context("confirm", func() {
		It("fails without a session", func() {
			err := coordinator.ConfirmImport(context.TODO())
			Expect(err).To(MatchError(importer.ErrNoSession))
			Expect(client.IsNotFound(err)).To(BeTrue())
			Expect(notifier.Messages()).To(ContainElement("error: No import session"))
		})

		It("keeps the preview when the service rejects the job", func() {
			upload()
			service.confirmErr = &client.APIError{Kind: client.KindNotFound, StatusCode: 404, Message: "Failed to confirm import"}

			err := coordinator.ConfirmImport(context.TODO())
			Expect(err).To(MatchError("Failed to confirm import"))

			job := coordinator.Snapshot()
			Expect(job.Stage).To(Equal(importer.StagePreview))
			Expect(job.Status).To(Equal(api.ImportStatusPending))
			Expect(job.Progress).To(Equal(importer.ProgressIdle))
			Expect(coordinator.ActivePolls()).To(Equal(0))
			Expect(notifier.Messages()).To(ContainElement("error: Failed to confirm import"))
		})

		It("can be retried after a failure", func() {
			upload()
			service.confirmErr = errors.New("connection reset")
			Expect(coordinator.ConfirmImport(context.TODO())).NotTo(Succeed())

			service.mu.Lock()
			service.confirmErr = nil
			service.mu.Unlock()
			Expect(coordinator.ConfirmImport(context.TODO())).To(Succeed())
			Expect(stage()).To(Equal(importer.StageImporting))
		})

		It("refuses a second confirm", func() {
			upload()
			Expect(coordinator.ConfirmImport(context.TODO())).To(Succeed())
			Expect(coordinator.ConfirmImport(context.TODO())).To(MatchError(importer.ErrNotInPreview))
			Expect(coordinator.ActivePolls()).To(BeNumerically("<=", 1))
		})

		It("completes with errors after polling", func() {
			upload()
			service.setStatuses(
				api.ImportStatusResponse{Status: api.ImportStatusProcessing},
				api.ImportStatusResponse{Status: api.ImportStatusProcessing},
				api.ImportStatusResponse{
					Status: api.ImportStatusCompletedWithErrors,
					Errors: []api.RowError{
						{Data: service.upload.Preview[0], Error: "duplicate car"},
						{Data: service.upload.Preview[5], Error: "duplicate car"},
					},
				},
			)

			Expect(coordinator.ConfirmImport(context.TODO())).To(Succeed())
			Expect(coordinator.Snapshot().Progress).To(BeNumerically(">=", importer.ProgressImporting))

			Eventually(stage).Should(Equal(importer.StageComplete))
			job := coordinator.Snapshot()
			Expect(job.Progress).To(Equal(importer.ProgressDone))
			Expect(job.Status).To(Equal(api.ImportStatusCompletedWithErrors))
			Expect(job.Errors).To(HaveLen(2))

			Eventually(coordinator.ActivePolls).Should(Equal(0))
			calls := service.StatusCalls()
			Expect(calls).To(Equal(3))
			Consistently(service.StatusCalls, 60*time.Millisecond).Should(Equal(calls))

			Expect(refreshes.Value()).To(Equal(1))
			Expect(notifier.Messages()).To(ContainElement("warning: Import completed with 2 errors"))
			Expect(sink.Kinds()).To(Equal([]string{
				events.ImportUploadedKind,
				events.ImportConfirmedKind,
				events.ImportCompletedKind,
			}))
			Expect(stages()).To(Equal([]transition{
				{importer.StageUpload, importer.StagePreview},
				{importer.StagePreview, importer.StageImporting},
				{importer.StageImporting, importer.StageComplete},
			}))
		})

		It("warns when the service reports errors without listing them", func() {
			upload()
			service.setStatuses(api.ImportStatusResponse{Status: api.ImportStatusCompletedWithErrors})

			Expect(coordinator.ConfirmImport(context.TODO())).To(Succeed())
			Eventually(stage).Should(Equal(importer.StageComplete))
			Eventually(notifier.Messages).Should(ContainElement("warning: Import completed with errors"))
			Expect(notifier.Messages()).NotTo(ContainElement(ContainSubstring("Successfully imported")))
		})

		It("checks the status right away", func() {
			coordinator = newCoordinator(time.Hour)
			upload()
			service.setStatuses(api.ImportStatusResponse{Status: api.ImportStatusCompleted})

			Expect(coordinator.ConfirmImport(context.TODO())).To(Succeed())
			Eventually(stage, time.Second).Should(Equal(importer.StageComplete))
			Expect(service.StatusCalls()).To(Equal(1))
			Eventually(notifier.Messages).Should(ContainElement("success: Successfully imported 10 cars"))
		})

		It("completes at once when confirm reports a terminal status", func() {
			upload()
			service.confirm.Status = api.ImportStatusCompleted

			Expect(coordinator.ConfirmImport(context.TODO())).To(Succeed())
			Expect(stage()).To(Equal(importer.StageComplete))
			Expect(coordinator.Snapshot().Progress).To(Equal(importer.ProgressDone))
			Expect(coordinator.ActivePolls()).To(Equal(0))
			Expect(service.StatusCalls()).To(Equal(0))
			Expect(refreshes.Value()).To(Equal(1))
		})

		It("keeps polling through transient errors", func() {
			upload()
			service.statusErrs = []error{&client.APIError{Kind: client.KindNetwork, Message: "Failed to get import status"}}
			service.setStatuses(api.ImportStatusResponse{Status: api.ImportStatusCompleted})

			Expect(coordinator.ConfirmImport(context.TODO())).To(Succeed())
			Eventually(stage).Should(Equal(importer.StageComplete))
			Expect(service.StatusCalls()).To(Equal(2))
		})

		It("resets when the service cancels the job", func() {
			upload()
			service.setStatuses(api.ImportStatusResponse{Status: api.ImportStatusCancelled})

			Expect(coordinator.ConfirmImport(context.TODO())).To(Succeed())
			Eventually(stage).Should(Equal(importer.StageUpload))
			Expect(coordinator.Snapshot().JobID).To(BeEmpty())
			Eventually(coordinator.ActivePolls).Should(Equal(0))
			Eventually(notifier.Messages).Should(ContainElement("warning: Import was cancelled"))
			Expect(refreshes.Value()).To(Equal(0))
		})

		It("resets when the session disappears", func() {
			upload()
			service.statusErrs = []error{notFound("Import session not found")}

			Expect(coordinator.ConfirmImport(context.TODO())).To(Succeed())
			Eventually(stage).Should(Equal(importer.StageUpload))
			Eventually(coordinator.ActivePolls).Should(Equal(0))
			Eventually(notifier.Messages).Should(ContainElement("error: Import session not found"))
		})

		It("allows the refresh callback to reset the coordinator", func() {
			coordinator = importer.NewCoordinator(service, importer.Options{
				PollInterval: 10 * time.Millisecond,
				Notifier:     notifier,
				OnRefresh: func(context.Context) {
					refreshes.Inc()
					coordinator.ResetImport()
				},
			})
			upload()
			service.setStatuses(api.ImportStatusResponse{Status: api.ImportStatusCompleted})

			Expect(coordinator.ConfirmImport(context.TODO())).To(Succeed())
			Eventually(refreshes.Value).Should(Equal(1))
			Eventually(stage).Should(Equal(importer.StageUpload))
			Eventually(coordinator.ActivePolls).Should(Equal(0))
		})
	})

	Context("cancel and close", func() {
		It("cancels the session when closed during preview", func() {
			upload()

			Expect(coordinator.Close(context.TODO())).To(Succeed())
			Expect(service.Cancelled()).To(Equal([]string{"job-1"}))
			Expect(coordinator.Snapshot()).To(Equal(importer.Job{Stage: importer.StageUpload}))
			Expect(stages()).To(ContainElements(
				transition{importer.StagePreview, importer.StageCancelled},
				transition{importer.StageCancelled, importer.StageUpload},
			))
			Expect(sink.Kinds()).To(ContainElement(events.ImportCancelledKind))
		})

		It("resets even when the delete fails", func() {
			upload()
			service.cancelErr = &client.APIError{Kind: client.KindServer, StatusCode: 500, Message: "Failed to cancel import"}

			err := coordinator.Close(context.TODO())
			Expect(err).To(MatchError("Failed to cancel import"))
			Expect(service.Cancelled()).To(HaveLen(1))

			job := coordinator.Snapshot()
			Expect(job.Stage).To(Equal(importer.StageUpload))
			Expect(job.JobID).To(BeEmpty())
			Expect(job.Preview).To(BeEmpty())
		})

		It("does not call the service when there is no job", func() {
			Expect(coordinator.Close(context.TODO())).To(Succeed())
			Expect(service.Cancelled()).To(BeEmpty())
		})

		It("does not pass through cancelled when there is no job", func() {
			Expect(coordinator.CancelImport(context.TODO())).To(Succeed())
			Expect(service.Cancelled()).To(BeEmpty())
			Expect(stages()).To(BeEmpty())
			Expect(sink.Kinds()).To(BeEmpty())
			Expect(stage()).To(Equal(importer.StageUpload))
		})

		It("stops polling without cancelling a running import", func() {
			upload()
			Expect(coordinator.ConfirmImport(context.TODO())).To(Succeed())
			Eventually(service.StatusCalls).Should(BeNumerically(">=", 2))

			Expect(coordinator.Close(context.TODO())).To(Succeed())
			Expect(coordinator.ActivePolls()).To(Equal(0))
			Expect(service.Cancelled()).To(BeEmpty())
			Expect(stage()).To(Equal(importer.StageUpload))

			calls := service.StatusCalls()
			Consistently(service.StatusCalls, 60*time.Millisecond).Should(Equal(calls))
		})

		It("opens with a clean state", func() {
			upload()
			coordinator.Open()
			Expect(coordinator.Snapshot()).To(Equal(importer.Job{Stage: importer.StageUpload}))
		})
	})

	Context("template", func() {
		It("writes the template bytes", func() {
			var buf bytes.Buffer
			n, err := coordinator.DownloadTemplate(context.TODO(), &buf)
			Expect(err).To(BeNil())
			Expect(n).To(BeNumerically(">", 0))
			Expect(buf.String()).To(HavePrefix("PK"))
			Expect(stage()).To(Equal(importer.StageUpload))
		})

		It("reports a failed download", func() {
			service.templateErr = &client.APIError{Kind: client.KindServer, Message: "Failed to download template"}
			_, err := coordinator.DownloadTemplate(context.TODO(), &bytes.Buffer{})
			Expect(err).NotTo(BeNil())
			Expect(notifier.Messages()).To(ContainElement("error: Failed to download template"))
		})
	})

	Context("status", func() {
		It("reads without touching the job", func() {
			upload()
			resp, err := coordinator.GetImportStatus(context.TODO(), "other-job")
			Expect(err).To(BeNil())
			Expect(resp.JobID).To(Equal("other-job"))
			Expect(coordinator.Snapshot().JobID).To(Equal("job-1"))
			Expect(stage()).To(Equal(importer.StagePreview))
		})
	})
})

var _ = Describe("waiting for an import", func() {
	It("returns once the poller is done", func() {
		service := newFakeService(4)
		service.setStatuses(
			api.ImportStatusResponse{Status: api.ImportStatusProcessing},
			api.ImportStatusResponse{Status: api.ImportStatusCompleted},
		)
		refreshes := &counter{}
		coordinator := importer.NewCoordinator(service, importer.Options{
			PollInterval: 10 * time.Millisecond,
			Notifier:     &recordingNotifier{},
			OnRefresh:    func(context.Context) { refreshes.Inc() },
		})

		_, err := coordinator.UploadExcel(context.TODO(), "cars.xlsx", strings.NewReader("xlsx"))
		Expect(err).To(BeNil())
		Expect(coordinator.ConfirmImport(context.TODO())).To(Succeed())

		ctx, cancel := context.WithTimeout(context.TODO(), 5*time.Second)
		defer cancel()
		job, err := coordinator.Wait(ctx)
		Expect(err).To(BeNil())
		Expect(job.Stage).To(Equal(importer.StageComplete))
		Expect(refreshes.Value()).To(Equal(1))
	})

	It("gives up with the context", func() {
		service := newFakeService(1)
		coordinator := importer.NewCoordinator(service, importer.Options{PollInterval: 10 * time.Millisecond, Notifier: &recordingNotifier{}})
		_, err := coordinator.UploadExcel(context.TODO(), "cars.xlsx", strings.NewReader("xlsx"))
		Expect(err).To(BeNil())
		Expect(coordinator.ConfirmImport(context.TODO())).To(Succeed())

		ctx, cancel := context.WithTimeout(context.TODO(), 30*time.Millisecond)
		defer cancel()
		job, err := coordinator.Wait(ctx)
		Expect(err).To(MatchError(context.DeadlineExceeded))
		Expect(job.Stage).To(Equal(importer.StageImporting))

		coordinator.ResetImport()
		Expect(coordinator.ActivePolls()).To(Equal(0))
	})

	It("returns at once without a poller", func() {
		coordinator := importer.NewCoordinator(newFakeService(1), importer.Options{Notifier: &recordingNotifier{}})
		job, err := coordinator.Wait(context.TODO())
		Expect(err).To(BeNil())
		Expect(job.Stage).To(Equal(importer.StageUpload))
	})
})
