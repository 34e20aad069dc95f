package store

import (
	"encoding/json"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"biosys/config"
	"biosys/geo"
)

// This is the survey data store: a table of datasets (each holding its
// schema descriptor) and, per dataset, the records accepted by validation.

// a dataset: a named table of records with a user-defined schema
type Dataset struct {
	// unique dataset name
	Name string `json:"name"`
	// dataset kind ("generic", "observation" or "species_observation")
	Kind string `json:"kind"`
	// free-form description
	Description string `json:"description,omitempty"`
	// the schema descriptor, as persisted JSON
	Descriptor json.RawMessage `json:"descriptor"`
	// time at which the dataset was created
	Created time.Time `json:"created"`
}

// one accepted record of a dataset
type Record struct {
	// UUID assigned on acceptance
	Id uuid.UUID `json:"id"`
	// the submitted row, keyed by field name
	Data map[string]any `json:"data"`
	// the cast observation date, if the dataset has date semantics
	Date *time.Time `json:"date,omitempty"`
	// the cast point geometry, if the dataset has geometry semantics
	Geometry *geo.Point `json:"geometry,omitempty"`
	// the composed species name, if the dataset has species semantics
	SpeciesName string `json:"species_name,omitempty"`
	// time at which the record was accepted
	Created time.Time `json:"created"`
}

// initialize the survey data store
func Init() error {
	if !IsOpen() {
		go storeProcess()
		time.Sleep(100 * time.Millisecond)
	}
	return nil
}

// saves and closes the survey data store (if it's been opened)
func Finalize() error {
	if IsOpen() {
		channels_.Input.Shutdown <- struct{}{}
		closeChannels()
	}
	return nil
}

// returns true if the store is open, false if not
func IsOpen() bool {
	if channels_.Open { // has Init() been called?
		channels_.Input.CheckIfOpen <- struct{}{}
		select {
		case isOpen := <-channels_.Output.IsOpen:
			return isOpen
		case <-time.After(1 * time.Second): // after a second, we assume the goroutine has crashed
			closeChannels()
			return false
		}
	}
	return false
}

// creates or replaces a dataset
func SaveDataset(dataset Dataset) error {
	if !IsOpen() {
		return &NotOpenError{}
	}
	channels_.Input.SaveDataset <- dataset
	return <-channels_.Output.Error
}

// retrieves a dataset by name
func GetDataset(name string) (Dataset, error) {
	if !IsOpen() {
		return Dataset{}, &NotOpenError{}
	}
	channels_.Input.FetchDataset <- name
	select {
	case dataset := <-channels_.Output.Dataset:
		return dataset, nil
	case err := <-channels_.Output.Error:
		return Dataset{}, err
	}
}

// retrieves all datasets, ordered by name
func Datasets() ([]Dataset, error) {
	if !IsOpen() {
		return nil, &NotOpenError{}
	}
	channels_.Input.FetchDatasets <- struct{}{}
	select {
	case datasets := <-channels_.Output.Datasets:
		return datasets, nil
	case err := <-channels_.Output.Error:
		return nil, err
	}
}

// appends accepted records to the named dataset
func SaveRecords(dataset string, records []Record) error {
	if !IsOpen() {
		return &NotOpenError{}
	}
	channels_.Input.SaveRecords <- recordBatch{Dataset: dataset, Records: records}
	return <-channels_.Output.Error
}

// retrieves all records of the named dataset
func Records(dataset string) ([]Record, error) {
	if !IsOpen() {
		return nil, &NotOpenError{}
	}
	channels_.Input.FetchRecords <- dataset
	select {
	case records := <-channels_.Output.Records:
		return records, nil
	case err := <-channels_.Output.Error:
		return nil, err
	}
}

//-----------
// Internals
//-----------

// The store gets its own goroutine so it doesn't bring down the entire
// service if it crashes. Here we define "input" channels (main process ->
// goroutine) and "output" channels (goroutine -> main process) for passing
// data back and forth

type recordBatch struct {
	Dataset string
	Records []Record
}

var channels_ struct {
	Open  bool // true if channels are open, false if not
	Input struct {
		SaveDataset   chan Dataset     // for creating/replacing datasets
		FetchDataset  chan string      // for fetching one dataset by name
		FetchDatasets chan struct{}    // for fetching all datasets
		SaveRecords   chan recordBatch // for appending accepted records
		FetchRecords  chan string      // for fetching a dataset's records
		CheckIfOpen   chan struct{}    // for checking whether the store is open
		Shutdown      chan struct{}    // for shutting down the store
	}

	Output struct {
		Dataset  chan Dataset   // for returning one dataset
		Datasets chan []Dataset // for returning datasets
		Records  chan []Record  // for returning records
		Error    chan error     // for returning errors
		IsOpen   chan bool      // for answering queries about whether the store is open
	}
}

func storeProcess() {

	// open the database, creating the buckets if necessary
	dbPath := filepath.Join(config.Service.DataDirectory, "survey_data.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		// no channels are open yet, so callers see a timed-out IsOpen()
		slog.Error((&CantOpenError{Message: err.Error()}).Error())
		return
	}

	// set up buckets for datasets and records
	db.Update(func(tx *bolt.Tx) error {
		for _, bucketName := range []string{"datasets", "records"} {
			if _, err := tx.CreateBucketIfNotExists([]byte(bucketName)); err != nil {
				return err
			}
		}
		return nil
	})

	openChannels()

	// handle requests
	running := true
	for running {
		select {

		case <-channels_.Input.CheckIfOpen:
			channels_.Output.IsOpen <- true // always true if this goroutine is running!

		case dataset := <-channels_.Input.SaveDataset:
			channels_.Output.Error <- saveDataset(db, dataset)

		case name := <-channels_.Input.FetchDataset:
			dataset, err := fetchDataset(db, name)
			if err != nil {
				channels_.Output.Error <- err
			} else {
				channels_.Output.Dataset <- dataset
			}

		case <-channels_.Input.FetchDatasets:
			datasets, err := fetchDatasets(db)
			if err != nil {
				channels_.Output.Error <- err
			} else {
				channels_.Output.Datasets <- datasets
			}

		case batch := <-channels_.Input.SaveRecords:
			channels_.Output.Error <- saveRecords(db, batch)

		case name := <-channels_.Input.FetchRecords:
			records, err := fetchRecords(db, name)
			if err != nil {
				channels_.Output.Error <- err
			} else {
				channels_.Output.Records <- records
			}

		case <-channels_.Input.Shutdown:
			err := db.Close()
			if err != nil {
				channels_.Output.Error <- &CantCloseError{
					Message: err.Error(),
				}
			}
			running = false
		}
	}
}

func openChannels() {
	channels_.Open = true
	channels_.Input.SaveDataset = make(chan Dataset)
	channels_.Input.FetchDataset = make(chan string)
	channels_.Input.FetchDatasets = make(chan struct{})
	channels_.Input.SaveRecords = make(chan recordBatch)
	channels_.Input.FetchRecords = make(chan string)
	channels_.Input.CheckIfOpen = make(chan struct{})
	channels_.Input.Shutdown = make(chan struct{})
	channels_.Output.Dataset = make(chan Dataset)
	channels_.Output.Datasets = make(chan []Dataset)
	channels_.Output.Records = make(chan []Record)
	channels_.Output.Error = make(chan error)
	channels_.Output.IsOpen = make(chan bool)
}

func closeChannels() {
	channels_.Open = false
	close(channels_.Input.SaveDataset)
	close(channels_.Input.FetchDataset)
	close(channels_.Input.FetchDatasets)
	close(channels_.Input.SaveRecords)
	close(channels_.Input.FetchRecords)
	close(channels_.Input.CheckIfOpen)
	close(channels_.Input.Shutdown)
	close(channels_.Output.Dataset)
	close(channels_.Output.Datasets)
	close(channels_.Output.Records)
	close(channels_.Output.Error)
	close(channels_.Output.IsOpen)
}

func saveDataset(db *bolt.DB, dataset Dataset) error {
	jsonBytes, err := json.Marshal(&dataset)
	if err != nil {
		return err
	}
	return db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte("datasets")).Put([]byte(dataset.Name), jsonBytes)
	})
}

func fetchDataset(db *bolt.DB, name string) (Dataset, error) {
	var dataset Dataset
	err := db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte("datasets")).Get([]byte(name))
		if data == nil {
			return &DatasetNotFoundError{Name: name}
		}
		return json.Unmarshal(data, &dataset)
	})
	return dataset, err
}

func fetchDatasets(db *bolt.DB) ([]Dataset, error) {
	datasets := make([]Dataset, 0)
	err := db.View(func(tx *bolt.Tx) error {
		// bucket keys are the dataset names, so the cursor walks them in order
		return tx.Bucket([]byte("datasets")).ForEach(func(k, v []byte) error {
			var dataset Dataset
			if err := json.Unmarshal(v, &dataset); err != nil {
				return err
			}
			datasets = append(datasets, dataset)
			return nil
		})
	})
	return datasets, err
}

func saveRecords(db *bolt.DB, batch recordBatch) error {
	tx, err := db.Begin(true)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// records live in a per-dataset bucket, indexed by their UUID
	if tx.Bucket([]byte("datasets")).Get([]byte(batch.Dataset)) == nil {
		return &DatasetNotFoundError{Name: batch.Dataset}
	}
	bucket, err := tx.Bucket([]byte("records")).CreateBucketIfNotExists([]byte(batch.Dataset))
	if err != nil {
		return err
	}
	for _, record := range batch.Records {
		jsonBytes, err := json.Marshal(&record)
		if err != nil {
			return err
		}
		if err := bucket.Put([]byte(record.Id.String()), jsonBytes); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func fetchRecords(db *bolt.DB, dataset string) ([]Record, error) {
	records := make([]Record, 0)
	err := db.View(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte("datasets")).Get([]byte(dataset)) == nil {
			return &DatasetNotFoundError{Name: dataset}
		}
		bucket := tx.Bucket([]byte("records")).Bucket([]byte(dataset))
		if bucket == nil { // no records yet
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			var record Record
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			records = append(records, record)
			return nil
		})
	})
	return records, err
}
