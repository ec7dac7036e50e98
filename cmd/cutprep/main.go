// Copyright (C) 2023 Carlo Verona
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.


package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"runtime"
	"runtime/pprof"
	"strconv"
	"strings"
	"github.com/cverona/cutprep/internal/ops"
	"github.com/cverona/cutprep/internal/ops/augment"
	"github.com/cverona/cutprep/internal/ops/bkg"
	"github.com/cverona/cutprep/internal/ops/geom"
	"github.com/cverona/cutprep/internal/ops/mask"
	"github.com/cverona/cutprep/internal/ops/scale"
	"github.com/cverona/cutprep/internal/ops/stretch"
	"github.com/cverona/cutprep/internal/rest"
)

const version = "0.3.1"

var (
	out        = flag.String("out", "", "output file pattern with optional %d for the image id; suffix .json, .tiff or .jpg selects the format")
	logFile    = flag.String("log", "", "tee log output into this file")
	pipeline   = flag.String("p", "", "load the processing pipeline from this JSON file instead of building it from flags")
	printPipe  = flag.Bool("printPipeline", false, "print the effective pipeline as JSON and exit")
	noAug      = flag.Bool("noAug", false, "strip augmentation stages from the pipeline, e.g. for inference runs")
	onErr      = flag.String("onerr", "skip", "failure policy for single images: skip|abort")
	threads    = flag.Int("threads", 0, "number of parallel workers, 0 for one per CPU core")
	port       = flag.Int("port", 0, "run as a REST API server on this port instead of batch processing")

	cpuProfile = flag.String("cpuprofile", "", "write CPU profile to file")
	memProfile = flag.String("memprofile", "", "write memory profile to file on exit")

	borderFract   = flag.Float64("borderMask", 0, "zero pixels outside a centered box of this fractional size, 0=off")
	shrinkKernel  = flag.Int("maskShrink", 0, "erode the validity mask with an elliptical kernel of this size, 0=off")

	bkgSigma      = flag.Float64("bkgSigma", 0, "subtract the sigma-clipped background with this sigma, 0=off")
	bkgBox        = flag.Bool("bkgBox", false, "exclude a centered box from the background sample")
	bkgFract      = flag.Float64("bkgFract", 0.5, "fractional size of the excluded background box")
	bkgChan       = flag.Int("bkgChan", -1, "channel to background-subtract, -1 for all")

	clipShiftSigma= flag.Float64("clipShiftSigma", 0, "shift the clipped noise floor to zero with this sigma, 0=off")
	clipShiftChan = flag.Int("clipShiftChan", -1, "channel to noise-shift, -1 for all")
	clipSigmaLow  = flag.Float64("clipSigmaLow", 0, "clamp pixels below median-sigmaLow*stddev, 0=off")
	clipSigmaUp   = flag.Float64("clipSigmaUp", 0, "clamp pixels above median+sigmaUp*stddev, 0=off")
	clipChan      = flag.Int("clipChan", -1, "channel to clamp, -1 for all")

	negativeFix   = flag.Bool("negativeFix", false, "rebase channels whose maximum is not positive")
	minShiftChan  = flag.String("minShift", "", "subtract the per-channel minimum; value is a channel id or -1 for each channel's own")
	shiftList     = flag.String("shift", "", "comma-separated per-channel offsets to subtract")
	scaleList     = flag.String("scale", "", "comma-separated per-channel scale factors")
	meansList     = flag.String("means", "", "comma-separated per-channel means for standardization")
	sigmasList    = flag.String("sigmas", "", "comma-separated per-channel sigmas for standardization")

	logStretch    = flag.Bool("logStretch", false, "apply a base-10 log stretch")
	logChanExcl   = flag.Int("logChanExcl", -1, "channel to exclude from the log stretch, -1 for none")
	logNorm       = flag.Bool("logNorm", false, "renormalize the log stretch output")
	logNormMin    = flag.Float64("logNormMin", 0, "lower bound of the renormalized log output")
	logNormMax    = flag.Float64("logNormMax", 1, "upper bound of the renormalized log output")
	logClipNeg    = flag.Bool("logClipNeg", false, "clip negative log stretch outputs to zero")
	contrastsList = flag.String("zscale", "", "comma-separated per-channel contrasts for a robust zscale stretch")

	divChan       = flag.Int("chanDivide", -1, "divide all channels by this reference channel, -1=off")
	divLog        = flag.Bool("divLog", false, "log-transform the channel ratios")
	divTrim       = flag.Bool("divTrim", false, "clip the channel ratios to the trim bounds")
	divTrimMin    = flag.Float64("divTrimMin", -6, "lower trim bound for channel ratios")
	divTrimMax    = flag.Float64("divTrimMax", 6, "upper trim bound for channel ratios")
	divStrip      = flag.Bool("divStrip", false, "drop the reference channel after dividing")

	maxScale      = flag.Bool("maxScale", false, "divide each channel by its own maximum")
	absMaxScale   = flag.Bool("absMaxScale", false, "divide all channels by the global maximum")
	chanMaxScale  = flag.Int("chanMaxScale", -1, "divide all channels by this channel's maximum, -1=off")
	scaleBox      = flag.Bool("scaleBox", false, "restrict the scaling maximum to a centered box")
	scaleFract    = flag.Float64("scaleFract", 0.5, "fractional size of the scaling box")

	norm          = flag.Bool("norm", false, "normalize each channel to [normMin, normMax]")
	absNorm       = flag.Bool("absNorm", false, "normalize all channels with one global min/max")
	normMin       = flag.Float64("normMin", 0, "lower normalization bound")
	normMax       = flag.Float64("normMax", 1, "upper normalization bound")

	resize        = flag.Int("resize", 0, "resize the canvas to this square size, 0=off")
	upscale       = flag.Bool("upscale", false, "stretch smaller images up instead of padding")
	antialias     = flag.Bool("antialias", false, "pre-blur before downscaling")
	padToMin      = flag.Bool("padToMin", true, "fill invalid pixels with the per-channel minimum after resizing")
	chanResize    = flag.Int("chanResize", 0, "bring the cube to this channel count, 0=off")

	augPreset     = flag.String("aug", "", "apply this augmentation preset: cae|cnn|simclr|simclr2|simclr3|simclr4")
	augPresets    = flag.String("augByIndex", "", "comma-separated presets chosen per image by id")
	augSeed       = flag.Uint("augSeed", 0, "seed for the augmentation random source, 0 for nondeterministic")
)

func main() {
	flag.Usage=func() {
		fmt.Fprintf(os.Stderr, "cutprep %s: prepare astronomical cutout cubes for machine learning\n\n", version)
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] cube1.json [cube2.json ...]\n\nFlags:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	logWriter:=io.Writer(os.Stdout)
	if *logFile!="" {
		f, err:=os.Create(*logFile)
		if err!=nil { fmt.Fprintf(os.Stderr, "Error creating log file: %s\n", err.Error()); os.Exit(1) }
		defer f.Close()
		logWriter=io.MultiWriter(os.Stdout, f)
	}
	c:=ops.NewContext(logWriter)
	if *threads>0 { c.MaxThreads=*threads }

	fmt.Fprintf(c.Log, "cutprep %s on %s with %d threads, %d MB RAM\n",
	            version, runtime.Version(), c.MaxThreads, c.MemoryMB)

	if *cpuProfile!="" {
		f, err:=os.Create(*cpuProfile)
		if err!=nil { fmt.Fprintf(os.Stderr, "Error creating CPU profile: %s\n", err.Error()); os.Exit(1) }
		defer f.Close()
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	if *port>0 {
		fmt.Fprintf(c.Log, "Serving REST API on port %d\n", *port)
		rest.Serve(*port)
		return
	}

	seq, err:=buildPipeline()
	if err!=nil { fmt.Fprintf(os.Stderr, "Error building pipeline: %s\n", err.Error()); os.Exit(1) }
	if *noAug {
		seq=ops.WithoutAugmenters(seq)
	}

	if *printPipe {
		bs, err:=json.MarshalIndent(seq, "", "  ")
		if err!=nil { fmt.Fprintf(os.Stderr, "Error marshaling pipeline: %s\n", err.Error()); os.Exit(1) }
		fmt.Println(string(bs))
		return
	}

	if flag.NArg()==0 {
		flag.Usage()
		os.Exit(2)
	}

	if seq.Augmenter() && c.MaxThreads>1 {
		// augmentation stages share one random stream per instance
		fmt.Fprintf(c.Log, "Augmentation active, limiting to one worker for reproducibility\n")
		c.MaxThreads=1
	}

	load:=ops.NewOpLoadMany(flag.Args())
	promises, err:=load.MakePromises(nil, c)
	if err!=nil { fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error()); os.Exit(1) }

	promises, err=seq.MakePromises(promises, c)
	if err!=nil { fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error()); os.Exit(1) }

	_, err=ops.MaterializeAll(promises, c.MaxThreads, true)
	if err!=nil {
		fmt.Fprintf(c.Log, "Errors during processing: %s\n", err.Error())
		if *onErr=="abort" { os.Exit(1) }
	}

	if *memProfile!="" {
		f, err:=os.Create(*memProfile)
		if err!=nil { fmt.Fprintf(os.Stderr, "Error creating memory profile: %s\n", err.Error()); os.Exit(1) }
		defer f.Close()
		runtime.GC()
		pprof.WriteHeapProfile(f)
	}
}

// Assembles the processing pipeline, either from a JSON file or from the stage flags
func buildPipeline() (*ops.OpSequence, error) {
	if *pipeline!="" {
		bs, err:=os.ReadFile(*pipeline)
		if err!=nil { return nil, err }
		seq:=ops.NewOpSequenceDefault()
		if err:=json.Unmarshal(bs, seq); err!=nil { return nil, err }
		appendSave(seq)
		return seq, nil
	}

	seq:=ops.NewOpSequence()

	if *borderFract>0    { seq.Append(mask.NewOpBorderMask(float32(*borderFract))) }
	if *shrinkKernel>0   { seq.Append(mask.NewOpMaskShrink(int32(*shrinkKernel))) }
	if *bkgSigma>0       { seq.Append(bkg.NewOpBkgSubtract(float32(*bkgSigma), *bkgBox, float32(*bkgFract), int32(*bkgChan))) }
	if *clipShiftSigma>0 { seq.Append(bkg.NewOpSigmaClipShift(float32(*clipShiftSigma), int32(*clipShiftChan))) }
	if *clipSigmaLow>0 || *clipSigmaUp>0 {
		seq.Append(bkg.NewOpSigmaClip(float32(*clipSigmaLow), float32(*clipSigmaUp), int32(*clipChan)))
	}
	if *negativeFix      { seq.Append(scale.NewOpNegativeFixDefault()) }
	if *minShiftChan!="" {
		ch, err:=strconv.Atoi(*minShiftChan)
		if err!=nil { return nil, fmt.Errorf("invalid -minShift value %q", *minShiftChan) }
		seq.Append(scale.NewOpMinShift(int32(ch)))
	}
	if *shiftList!="" {
		offsets, err:=parseFloats(*shiftList)
		if err!=nil { return nil, err }
		seq.Append(scale.NewOpShift(offsets))
	}
	if *scaleList!="" {
		factors, err:=parseFloats(*scaleList)
		if err!=nil { return nil, err }
		seq.Append(scale.NewOpScale(factors))
	}
	if *meansList!="" || *sigmasList!="" {
		means, err:=parseFloats(*meansList)
		if err!=nil { return nil, err }
		sigmas, err:=parseFloats(*sigmasList)
		if err!=nil { return nil, err }
		seq.Append(scale.NewOpStandardize(means, sigmas))
	}
	if *logStretch {
		seq.Append(stretch.NewOpLogStretch(int32(*logChanExcl), *logNorm,
		           float32(*logNormMin), float32(*logNormMax), *logClipNeg))
	}
	if *contrastsList!="" {
		contrasts, err:=parseFloats(*contrastsList)
		if err!=nil { return nil, err }
		seq.Append(stretch.NewOpZScale(contrasts))
	}
	if *divChan>=0 {
		seq.Append(geom.NewOpChanDivide(int32(*divChan), *divLog, *divTrim,
		           float32(*divTrimMin), float32(*divTrimMax), *divStrip))
	}
	if *maxScale        { seq.Append(scale.NewOpMaxScale(*scaleBox, float32(*scaleFract))) }
	if *absMaxScale     { seq.Append(scale.NewOpAbsMaxScale(*scaleBox, float32(*scaleFract))) }
	if *chanMaxScale>=0 { seq.Append(scale.NewOpChanMaxScale(int32(*chanMaxScale), *scaleBox, float32(*scaleFract))) }
	if *norm            { seq.Append(scale.NewOpMinMaxNorm(float32(*normMin), float32(*normMax))) }
	if *absNorm         { seq.Append(scale.NewOpAbsMinMaxNorm(float32(*normMin), float32(*normMax))) }
	if *resize>0        { seq.Append(geom.NewOpResize(int32(*resize), *upscale, *antialias, *padToMin)) }
	if *chanResize>0    { seq.Append(geom.NewOpChanResize(int32(*chanResize))) }

	if *augPreset!="" && *augPresets!="" {
		return nil, fmt.Errorf("-aug and -augByIndex are mutually exclusive")
	}
	if *augPreset!="" {
		op, err:=augment.NewOpAugment(*augPreset, uint32(*augSeed))
		if err!=nil { return nil, err }
		op.StartBatch()
		seq.Append(op)
	}
	if *augPresets!="" {
		op, err:=augment.NewOpAugmentByIndex(strings.Split(*augPresets, ","), uint32(*augSeed))
		if err!=nil { return nil, err }
		op.StartBatch()
		seq.Append(op)
	}
	appendSave(seq)
	return seq, nil
}

func appendSave(seq *ops.OpSequence) {
	if *out!="" { seq.Append(ops.NewOpSave(*out)) }
}

func parseFloats(s string) (res []float32, err error) {
	if s=="" { return nil, nil }
	for _, part:=range strings.Split(s, ",") {
		v, err:=strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err!=nil { return nil, fmt.Errorf("invalid number %q: %s", part, err.Error()) }
		if math.IsNaN(v) { return nil, fmt.Errorf("invalid number %q", part) }
		res=append(res, float32(v))
	}
	return res, nil
}
