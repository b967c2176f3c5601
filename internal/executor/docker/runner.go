package docker

// Filenames inside the per-job directory staged into the container.
// artifactName is the conventional location generated plotting code writes
// to — its presence after a clean run is the entire signaling protocol.
const (
	jobDir       = "job"
	runnerName   = "run.py"
	snippetName  = "snippet.py"
	datasetName  = "dataset.csv"
	artifactName = "output.png"
)

// runnerScript is the harness executed inside the container. It loads the
// dataset with the same flags the upload parser used, then exec()s the
// generated snippet with a restricted global binding set: the DataFrame and
// the pandas namespace, nothing else. An exception anywhere in the snippet
// is printed as a full traceback on stderr and turned into a non-zero exit,
// which is how the executor tells "raised" apart from "ran clean".
//
// The exec-level restriction is cosmetic (the snippet can still import
// whatever the image ships); the real boundary is the container: no network,
// read-only rootfs, tmpfs scratch, memory/CPU/time limits.
const runnerScript = `import sys
import traceback

import pandas as pd

df = pd.read_csv("` + datasetName + `", sep=",", comment="#")

with open("` + snippetName + `", "r", encoding="utf-8") as f:
    code = f.read()

execution_globals = {"df": df, "pd": pd}

try:
    exec(code, execution_globals)
except Exception:
    traceback.print_exc()
    sys.exit(1)
`
