package record

import (
	"context"
	"strconv"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/opentracing/opentracing-go"
	tracerLog "github.com/opentracing/opentracing-go/log"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// EasyRecorders chains a span, a histogram and a log line for every action.
// The returned PromFactory still has to be registered.
func EasyRecorders(desc string, logger *zap.Logger, factory ...Factory) (Factory, *PromFactory) {
	prom := NewPromFactory(desc)
	fs := chainFactory{
		NewTracerFactory(nil),
		prom,
		NewLoggerFactory(logger, true, desc),
	}
	fs = append(fs, factory...)
	return fs, prom
}

type PromFactory struct {
	labels []string
	hv     *prometheus.HistogramVec
}

func NewPromFactory(name string, fields ...string) *PromFactory {
	labels := append([]string{"name", "err"}, fields...)
	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    name,
		Help:    "Duration in seconds of " + name + " actions.",
		Buckets: prometheus.DefBuckets,
	}, labels)

	return &PromFactory{
		labels: labels,
		hv:     hv,
	}
}

func (factory *PromFactory) Collector() prometheus.Collector {
	return factory.hv
}

func (factory *PromFactory) MustRegister(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(factory.hv)
}

func (factory *PromFactory) ActionRecorder(ctx context.Context, name string, fields ...Field) (Recorder, context.Context) {
	if factory == nil || factory.hv == nil {
		return skipRecorder{}, ctx
	}
	return &PromRecorder{
		fields:    fields,
		factory:   factory,
		startTime: time.Now(),
		name:      name,
	}, ctx
}

func (factory *PromFactory) buildLabel(name string, err error, fields []Field) prometheus.Labels {
	lbs := make(prometheus.Labels, len(factory.labels))
	for _, l := range factory.labels {
		lbs[l] = ""
	}
	lbs["name"] = name
	lbs["err"] = strconv.FormatBool(err != nil)
	for _, f := range fields {
		if _, ok := lbs[f.Name]; ok && f.Name != "name" && f.Name != "err" {
			lbs[f.Name] = f.StringValue()
		}
	}
	return lbs
}

type PromRecorder struct {
	fields    []Field
	factory   *PromFactory
	startTime time.Time
	name      string
}

func (recorder *PromRecorder) Commit(err error, fields ...Field) {
	labels := recorder.factory.buildLabel(recorder.name, err, append(recorder.fields, fields...))
	recorder.factory.hv.With(labels).Observe(time.Since(recorder.startTime).Seconds())
}

type LoggerFactory struct {
	logger      *zap.Logger
	recordNoErr bool
	desc        string
}

func NewLoggerFactory(logger *zap.Logger, recordNoErr bool, desc string) *LoggerFactory {
	return &LoggerFactory{
		logger:      logger,
		recordNoErr: recordNoErr,
		desc:        desc,
	}
}

// ActionRecorder also puts a logger naming the action into ctx, reachable
// with ctxzap.Extract.
func (factory *LoggerFactory) ActionRecorder(ctx context.Context, name string, fields ...Field) (Recorder, context.Context) {
	logger := factory.logger
	if logger == nil {
		logger = zap.L()
	}
	logger = logger.With(zap.String("action", name))
	ctx = ctxzap.ToContext(ctx, logger)
	return &LoggerRecorder{
		fields:    fields,
		factory:   factory,
		logger:    logger,
		startTime: time.Now(),
	}, ctx
}

type LoggerRecorder struct {
	fields    []Field
	factory   *LoggerFactory
	logger    *zap.Logger
	startTime time.Time
}

func (recorder *LoggerRecorder) Commit(err error, fields ...Field) {
	if err == nil && !recorder.factory.recordNoErr {
		return
	}

	all := append(recorder.fields, fields...)
	fs := make([]zap.Field, 0, len(all)+2)
	fs = append(fs, zap.Duration("duration", time.Since(recorder.startTime)))
	for _, f := range all {
		fs = append(fs, zap.String(f.Name, f.StringValue()))
	}

	if err != nil {
		fs = append(fs, zap.Error(err))
		recorder.logger.Error(recorder.factory.desc, fs...)
		return
	}
	recorder.logger.Debug(recorder.factory.desc, fs...)
}

type TracerFactory struct {
	tracer opentracing.Tracer
}

// NewTracerFactory uses the global tracer when tracer is nil.
func NewTracerFactory(tracer opentracing.Tracer) *TracerFactory {
	return &TracerFactory{
		tracer: tracer,
	}
}

func (factory *TracerFactory) ActionRecorder(ctx context.Context, name string, fields ...Field) (Recorder, context.Context) {
	tracer := factory.tracer
	if tracer == nil {
		tracer = opentracing.GlobalTracer()
	}

	span, ctx := opentracing.StartSpanFromContextWithTracer(ctx, tracer, name)
	for _, f := range fields {
		span.SetTag(f.Name, f.Value())
	}
	return &TracerRecorder{
		span: span,
	}, ctx
}

type TracerRecorder struct {
	span opentracing.Span
}

func (recorder *TracerRecorder) Commit(err error, fields ...Field) {
	for _, f := range fields {
		recorder.span.SetTag(f.Name, f.Value())
	}
	if err != nil {
		recorder.span.SetTag("error", true)
		recorder.span.LogFields(tracerLog.Error(err))
	}
	recorder.span.Finish()
}
